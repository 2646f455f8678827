package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/krbiz/backend/internal/domain/reconcile"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("NewReconcileMetrics: meter cannot be nil")

// ReconcileMetrics counts what reconciliation passes and merges produce
type ReconcileMetrics struct {
	passes       *Counter
	deliveryRows *Counter
	matched      *Counter
	leftover     *Counter
	skippedFiles *Counter
	mergedOrders *Counter
	passDuration *Histogram
}

// NewReconcileMetrics creates the instruments on meter
func NewReconcileMetrics(meter metric.Meter) (*ReconcileMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReconcileMetrics{}
	var err error
	if m.passes, err = NewCounter(meter,
		"krbiz_reconcile_pass_total", "Reconciliation passes run", "{pass}"); err != nil {
		return nil, err
	}
	if m.deliveryRows, err = NewCounter(meter,
		"krbiz_reconcile_delivery_rows_total", "Delivery confirmation rows by match outcome", "{row}"); err != nil {
		return nil, err
	}
	if m.matched, err = NewCounter(meter,
		"krbiz_reconcile_matched_rows_total", "Matched delivery rows by order platform", "{row}"); err != nil {
		return nil, err
	}
	if m.leftover, err = NewCounter(meter,
		"krbiz_reconcile_leftover_rows_total", "Delivery rows written to the leftover table", "{row}"); err != nil {
		return nil, err
	}
	if m.skippedFiles, err = NewCounter(meter,
		"krbiz_order_files_skipped_total", "Order files left out of a pass or merge", "{file}"); err != nil {
		return nil, err
	}
	if m.mergedOrders, err = NewCounter(meter,
		"krbiz_merged_orders_total", "Order rows written to merged files", "{row}"); err != nil {
		return nil, err
	}
	if m.passDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "krbiz_reconcile_pass_duration_seconds",
		Description: "Reconciliation pass latency",
		Unit:        "s",
		Boundaries:  PassDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPass records the outcome counts of one pass
func (m *ReconcileMetrics) RecordPass(ctx context.Context, policy reconcile.Policy, sum reconcile.Summary, skippedFiles int, elapsed time.Duration) {
	p := AttrPolicy.String(string(policy))
	m.passes.Inc(ctx, p)
	m.passDuration.RecordDuration(ctx, elapsed, p)

	outcomes := []struct {
		status reconcile.Status
		n      int
	}{
		{reconcile.StatusMatched, sum.Matched},
		{reconcile.StatusUnmatched, sum.Unmatched},
		{reconcile.StatusAmbiguous, sum.Ambiguous},
	}
	for _, o := range outcomes {
		if o.n > 0 {
			m.deliveryRows.Add(ctx, int64(o.n), p, AttrOutcome.String(string(o.status)))
		}
	}

	for name, n := range sum.PerPlatform {
		if n > 0 {
			m.matched.Add(ctx, int64(n), p, AttrPlatform.String(name))
		}
	}

	if sum.Leftover > 0 {
		m.leftover.Add(ctx, int64(sum.Leftover), p)
	}
	if skippedFiles > 0 {
		m.skippedFiles.Add(ctx, int64(skippedFiles), AttrOutput.String("pass"))
	}
}

// RecordMerge records the rows a merge wrote. output names the merge kind.
func (m *ReconcileMetrics) RecordMerge(ctx context.Context, output string, orders, skippedFiles int) {
	attr := AttrOutput.String(output)
	if orders > 0 {
		m.mergedOrders.Add(ctx, int64(orders), attr)
	}
	if skippedFiles > 0 {
		m.skippedFiles.Add(ctx, int64(skippedFiles), attr)
	}
}
