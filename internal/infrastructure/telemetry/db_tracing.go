package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds settings store query tracing configuration
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool                 // keep bound values in span statements
	SlowQueryThresh time.Duration        // default 200ms
	DBSystem        string               // sqlite or postgresql
	TracerProvider  trace.TracerProvider // global provider when nil
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow query mark
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}
}

// DBTracingPlugin installs otelgorm on a gorm handle and marks slow or
// failed statements on their spans
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a plugin for cfg
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartKey struct{}

// RegisterOtelGorm registers otelgorm and the timing callbacks on db. It does
// nothing when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// finish runs before otelgorm ends the span
	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("krbiz:start_create", p.start),
		cb.Query().Before("gorm:query").Register("krbiz:start_query", p.start),
		cb.Update().Before("gorm:update").Register("krbiz:start_update", p.start),
		cb.Delete().Before("gorm:delete").Register("krbiz:start_delete", p.start),
		cb.Row().Before("gorm:row").Register("krbiz:start_row", p.start),
		cb.Raw().Before("gorm:raw").Register("krbiz:start_raw", p.start),
		cb.Create().After("gorm:create").Before("otel:after:create").Register("krbiz:finish_create", p.finish),
		cb.Query().After("gorm:query").Before("otel:after:select").Register("krbiz:finish_query", p.finish),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("krbiz:finish_update", p.finish),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("krbiz:finish_delete", p.finish),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("krbiz:finish_row", p.finish),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("krbiz:finish_raw", p.finish),
	)
	if err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func (p *DBTracingPlugin) start(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) finish(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(started); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		p.logger.Warn("Slow settings query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", p.config.SlowQueryThresh))
	}
}
