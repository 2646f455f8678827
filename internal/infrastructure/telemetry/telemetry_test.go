package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/krbiz/backend/internal/infrastructure/telemetry"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "krbiz-test",
	}

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.Equal(t, cfg, tp.GetConfig())
	assert.NotNil(t, tp.Tracer("krbiz"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "krbiz-test",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "krbiz-test", mp.GetConfig().ServiceName)

	// Disabled providers still hand out usable meters
	meter := mp.Meter("krbiz")
	require.NotNil(t, meter)
	_, err = telemetry.NewReconcileMetrics(meter)
	assert.NoError(t, err)

	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{ServiceName: "krbiz-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewZapOTELCore(t *testing.T) {
	t.Run("Nil provider gives a no-op core", func(t *testing.T) {
		core := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{ServiceName: "krbiz-test"})
		assert.False(t, core.Enabled(zapcore.ErrorLevel))
	})

	t.Run("Disabled provider gives a no-op core", func(t *testing.T) {
		lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, zap.NewNop())
		require.NoError(t, err)

		core := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{LoggerProvider: lp, Level: zapcore.InfoLevel})
		assert.False(t, core.Enabled(zapcore.ErrorLevel))
	})

	t.Run("Bridged logger still writes to the base core", func(t *testing.T) {
		obsCore, logs := observer.New(zapcore.InfoLevel)
		base := zap.New(obsCore)

		bridged := telemetry.NewBridgedLogger(base, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{}))
		bridged.Info("Orders merged", zap.Int("orders", 3))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Orders merged", logs.All()[0].Message)
	})
}
