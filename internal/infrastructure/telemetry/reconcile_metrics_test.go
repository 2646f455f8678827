package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/infrastructure/telemetry"
)

func newManualMetrics(t *testing.T) (*telemetry.ReconcileMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewReconcileMetrics(mp.Meter("krbiz"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// sums returns the data points of a counter keyed by one attribute
func sums(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			out := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				out[v.AsString()] += dp.Value
			}
			return out
		}
	}
	return nil
}

func TestNewReconcileMetrics(t *testing.T) {
	m, err := telemetry.NewReconcileMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, m)

	// no-op meters accept records
	m.RecordPass(context.Background(), reconcile.PolicyExact, reconcile.Summary{Matched: 1}, 0, time.Millisecond)
	m.RecordMerge(context.Background(), "orders", 2, 1)
}

func TestNewReconcileMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewReconcileMetrics(nil)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, "NewReconcileMetrics: meter cannot be nil", err.Error())
}

func TestReconcileMetrics_RecordPass(t *testing.T) {
	m, reader := newManualMetrics(t)
	ctx := context.Background()

	m.RecordPass(ctx, reconcile.PolicyExact, reconcile.Summary{
		DeliveryRows: 6,
		Matched:      3,
		Unmatched:    2,
		Ambiguous:    1,
		Leftover:     3,
		PerPlatform:  map[string]int{"smartstore": 2, "coupang": 1},
	}, 1, 20*time.Millisecond)
	m.RecordPass(ctx, reconcile.PolicySubstring, reconcile.Summary{DeliveryRows: 1, Unmatched: 1, Leftover: 1}, 0, time.Millisecond)

	rm := collect(t, reader)

	assert.Equal(t, map[string]int64{"exact": 1, "substring": 1},
		sums(t, rm, "krbiz_reconcile_pass_total", telemetry.AttrPolicy))
	assert.Equal(t, map[string]int64{"matched": 3, "unmatched": 3, "ambiguous": 1},
		sums(t, rm, "krbiz_reconcile_delivery_rows_total", telemetry.AttrOutcome))
	assert.Equal(t, map[string]int64{"smartstore": 2, "coupang": 1},
		sums(t, rm, "krbiz_reconcile_matched_rows_total", telemetry.AttrPlatform))
	assert.Equal(t, map[string]int64{"exact": 3, "substring": 1},
		sums(t, rm, "krbiz_reconcile_leftover_rows_total", telemetry.AttrPolicy))
	assert.Equal(t, map[string]int64{"pass": 1},
		sums(t, rm, "krbiz_order_files_skipped_total", telemetry.AttrOutput))
}

func TestReconcileMetrics_RecordMerge(t *testing.T) {
	m, reader := newManualMetrics(t)
	ctx := context.Background()

	m.RecordMerge(ctx, "orders", 4, 0)
	m.RecordMerge(ctx, "delivery_form", 4, 2)
	m.RecordMerge(ctx, "orders", 0, 1)

	rm := collect(t, reader)
	assert.Equal(t, map[string]int64{"orders": 4, "delivery_form": 4},
		sums(t, rm, "krbiz_merged_orders_total", telemetry.AttrOutput))
	assert.Equal(t, map[string]int64{"delivery_form": 2, "orders": 1},
		sums(t, rm, "krbiz_order_files_skipped_total", telemetry.AttrOutput))
}
