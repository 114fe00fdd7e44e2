package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the meter name for order sync metrics
const MeterName = "ordersync"

// SyncMetrics records reconciliation and cycle metrics of the order sync engine.
type SyncMetrics struct {
	ordersReconciled *Counter
	stockDeductions  *Counter
	itemsSkipped     *Counter
	accountsFailed   *Counter
	cycleDuration    *DurationHistogram
}

// NewSyncMetrics creates the sync instruments on the given meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	var err error

	m.ordersReconciled, err = newCounter(meter,
		"ordersync.orders.reconciled",
		"Orders upserted by the reconciliation engine",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	m.stockDeductions, err = newCounter(meter,
		"ordersync.stock.deductions",
		"EXIT stock movements appended for verified orders",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	m.itemsSkipped, err = newCounter(meter,
		"ordersync.items.skipped",
		"Order items skipped during deduction",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	m.accountsFailed, err = newCounter(meter,
		"ordersync.accounts.failed",
		"Account syncs that ended with an error",
		"{accounts}",
	)
	if err != nil {
		return nil, err
	}

	m.cycleDuration, err = newDurationHistogram(meter,
		"ordersync.cycle.duration",
		"Duration of a full sync cycle",
		CycleDurationBuckets,
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordReconciliation records the outcome of reconciling one account's orders.
func (m *SyncMetrics) RecordReconciliation(ctx context.Context, accountID uuid.UUID, orders, movements, skippedNoSKU, skippedNoProduct int) {
	if m == nil {
		return
	}
	account := AttrAccountID.String(accountID.String())
	m.ordersReconciled.Add(ctx, orders, account)
	m.stockDeductions.Add(ctx, movements, account)
	m.itemsSkipped.Add(ctx, skippedNoSKU, account, AttrSkipReason.String("no_sku"))
	m.itemsSkipped.Add(ctx, skippedNoProduct, account, AttrSkipReason.String("no_product"))
}

// RecordAccountFailure records a failed account sync. kind is "auth" or "transient".
func (m *SyncMetrics) RecordAccountFailure(ctx context.Context, accountID uuid.UUID, kind string) {
	if m == nil {
		return
	}
	m.accountsFailed.Inc(ctx, AttrAccountID.String(accountID.String()), AttrErrorKind.String(kind))
}

// RecordCycle records the duration of a finished cycle.
func (m *SyncMetrics) RecordCycle(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.cycleDuration.Record(ctx, d, AttrOutcome.String(outcome))
}
