package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned by instrument constructors given a nil meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Metric attribute keys
var (
	AttrAccountID  = attribute.Key("account_id")
	AttrErrorKind  = attribute.Key("error_kind")
	AttrSkipReason = attribute.Key("skip_reason")
	AttrOutcome    = attribute.Key("outcome")
	AttrDBState    = attribute.Key("db.pool.state")
)

// CycleDurationBuckets are bucket boundaries for sync cycle duration (seconds).
// A cycle spans several accounts with a pause between them, so the tail is long.
var CycleDurationBuckets = []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600}

// Counter is a monotonically increasing int64 instrument
type Counter struct {
	counter metric.Int64Counter
}

func newCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by n. Non-positive n is ignored.
func (c *Counter) Add(ctx context.Context, n int, attrs ...attribute.KeyValue) {
	if n <= 0 {
		return
	}
	c.counter.Add(ctx, int64(n), metric.WithAttributes(attrs...))
}

// Inc increments the counter by one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// DurationHistogram records durations in seconds
type DurationHistogram struct {
	histogram metric.Float64Histogram
}

func newDurationHistogram(meter metric.Meter, name, description string, buckets []float64) (*DurationHistogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit("s"),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return &DurationHistogram{histogram: h}, nil
}

// Record records d in seconds
func (h *DurationHistogram) Record(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}
