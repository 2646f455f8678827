package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	settingsapp "github.com/krbiz/backend/internal/application/settings"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/infrastructure/cache"
	"github.com/krbiz/backend/internal/infrastructure/config"
	"github.com/krbiz/backend/internal/infrastructure/crypto"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
	"github.com/krbiz/backend/internal/infrastructure/logger"
	"github.com/krbiz/backend/internal/infrastructure/persistence"
	"github.com/krbiz/backend/internal/infrastructure/storage"
	"github.com/krbiz/backend/internal/infrastructure/telemetry"
	"github.com/krbiz/backend/internal/interfaces/http/handler"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
	"github.com/krbiz/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	tracerProvider, meterProvider, loggerProvider, err := initTelemetry(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, loggerProvider)
	log = telemetry.NewBridgedLogger(log, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: loggerProvider,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))

	log.Info("Starting order reconciliation server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("settings_store", cfg.Settings.Store),
		zap.String("default_policy", cfg.Reconcile.DefaultPolicy),
	)

	store, health, closeStore, err := openSettingsStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer closeStore()

	settingsSvc := settingsapp.NewService(store, log.Named("settings"))

	parser := csvimport.NewCSVParser(
		csvimport.WithMaxBytes(cfg.Reconcile.MaxFileSize),
		csvimport.WithMaxRows(cfg.Reconcile.MaxRows),
	)
	decryptor := crypto.NewSealedFileDecryptor(crypto.WithScryptParams(crypto.ScryptParams{
		N: cfg.Crypto.ScryptN,
		R: cfg.Crypto.ScryptR,
		P: cfg.Crypto.ScryptP,
	}))

	reconcileMetrics, err := telemetry.NewReconcileMetrics(meterProvider.Meter("krbiz.reconcile"))
	if err != nil {
		log.Fatal("Failed to create reconcile metrics", zap.Error(err))
	}

	opts := []reconcileapp.Option{
		reconcileapp.WithParser(parser),
		reconcileapp.WithDecryptor(decryptor),
		reconcileapp.WithMetrics(reconcileMetrics),
		reconcileapp.WithLogger(log.Named("reconcile")),
	}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3ReportArchive(&cfg.Storage, storage.WithLogger(log.Named("archive")))
		if err != nil {
			log.Fatal("Failed to create report archive", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = archive.EnsureBucket(ctx)
		cancel()
		if err != nil {
			log.Fatal("Failed to prepare report archive bucket", zap.Error(err), zap.String("bucket", archive.Bucket()))
		}
		opts = append(opts, reconcileapp.WithArchive(archive))
		log.Info("Report archive enabled", zap.String("bucket", archive.Bucket()))
	}

	sessions := reconcileapp.NewInMemorySessionStore(cfg.Reconcile.SessionTTL)
	defer sessions.Stop()

	reconcileSvc := reconcileapp.NewService(sessions, settingsSvc, reconcileapp.Config{
		DefaultPolicy: reconcile.Policy(cfg.Reconcile.DefaultPolicy),
		TrimValues:    cfg.Reconcile.TrimValues,
		TrackingHint:  cfg.Reconcile.TrackingColumnHint,
	}, opts...)

	// Set Gin mode based on environment
	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	router.RegisterAPI(r, router.Handlers{
		Sessions: handler.NewSessionHandler(reconcileSvc),
		Orders:   handler.NewOrderHandler(reconcileSvc, cfg.Reconcile.MaxFileSize),
		Runs:     handler.NewRunHandler(reconcileSvc),
		Settings: handler.NewSettingsHandler(settingsSvc, parser, cfg.Reconcile.MaxFileSize),
	})
	r.Setup()

	engine.GET("/health", healthHandler(health, sessions))

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// openSettingsStore opens the backend chosen by settings.store. The returned
// check reports whether the backend is reachable.
func openSettingsStore(cfg *config.Config, log *zap.Logger) (settings.Store, func(context.Context) error, func(), error) {
	switch cfg.Settings.Store {
	case config.StoreMemory:
		log.Warn("Settings are kept in memory and lost on restart")
		return cache.NewInMemorySettingsStore(), nil, func() {}, nil

	case config.StoreRedis:
		store, err := cache.NewRedisSettingsStore(cache.RedisConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Redis connected successfully")
		closeFn := func() {
			if err := store.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}
		return store, store.Ping, closeFn, nil

	default:
		db, err := persistence.NewDatabase(cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Database connected successfully")
		dbSystem := "sqlite"
		if cfg.Settings.Store == config.StorePostgres {
			dbSystem = "postgresql"
		}
		tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, log.Named("db"))
		if err := tracing.RegisterOtelGorm(db.DB); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}
		ping := func(context.Context) error { return db.Ping() }
		return persistence.NewGormSettingsStore(db.DB), ping, closeFn, nil
	}
}

// initTelemetry creates the trace, metric and log providers. Each one is a
// no-op unless telemetry.enabled is set.
func initTelemetry(cfg *config.Config, log *zap.Logger) (*telemetry.TracerProvider, *telemetry.MeterProvider, *telemetry.LoggerProvider, error) {
	ctx := context.Background()
	t := cfg.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, nil, err
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.Enabled && t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, nil, nil, err
	}
	return tp, mp, lp, nil
}

func shutdownTelemetry(log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider, lp *telemetry.LoggerProvider) {
	ctx := context.Background()
	if err := lp.Shutdown(ctx); err != nil {
		log.Error("Failed to flush logs", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}
}

// healthHandler returns a handler for health check endpoints
func healthHandler(check func(context.Context) error, sessions *reconcileapp.InMemorySessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				reqLog.Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":         "unhealthy",
					"time":           time.Now().Format(time.RFC3339),
					"settings_store": "error",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"time":           time.Now().Format(time.RFC3339),
			"settings_store": "ok",
			"sessions":       sessions.Len(),
		})
	}
}
