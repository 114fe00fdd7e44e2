package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every sync span
const TracerName = "ordersync"

// Span names, one per unit of sync work
const (
	SpanSyncCycle      = "ordersync.cycle"
	SpanSyncAccount    = "ordersync.account"
	SpanReconcileOrder = "ordersync.reconcile_order"
)

// Attribute keys for sync spans
const (
	SpanAttrAccountID       = "account_id"
	SpanAttrOrderID         = "order_id"
	SpanAttrExternalOrderID = "external_order_id"
	SpanAttrOrderNumber     = "order_number"
	SpanAttrOrderStatus     = "order_status"
	SpanAttrPages           = "pages"
	SpanAttrPartial         = "partial"
	SpanAttrOrders          = "orders"
	SpanAttrMovements       = "movements"
	SpanAttrCycleID         = "cycle_id"
)

// StartSpan starts an internal span. keyValues alternate key, value.
// The caller ends the span.
func StartSpan(ctx context.Context, name string, keyValues ...any) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if attrs := keyValueAttrs(keyValues); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// StartCycleSpan opens the root span of one scheduler cycle
func StartCycleSpan(ctx context.Context, cycleID uuid.UUID) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSyncCycle, SpanAttrCycleID, cycleID)
}

// StartAccountSpan opens the span covering token refresh, fetch and reconcile for one account
func StartAccountSpan(ctx context.Context, accountID uuid.UUID) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSyncAccount, SpanAttrAccountID, accountID)
}

// StartOrderSpan opens the span around one order's reconciliation transaction
func StartOrderSpan(ctx context.Context, accountID uuid.UUID, externalOrderID, status string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReconcileOrder,
		SpanAttrAccountID, accountID,
		SpanAttrExternalOrderID, externalOrderID,
		SpanAttrOrderStatus, status,
	)
}

// SetAttributes adds alternating key, value pairs to span.
// Non-string keys and a trailing key without value are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(keyValueAttrs(keyValues)...)
}

// RecordError marks span as failed with err. A nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// FinishSpan records err (if any), otherwise marks span OK, then ends it
func FinishSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		RecordError(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddEvent adds a named event carrying alternating key, value pairs
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(keyValueAttrs(keyValues)...))
}

// GetTraceID returns the trace ID of the span in ctx, or "" without a valid span
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span ID of the span in ctx, or "" without a valid span
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.SpanID().IsValid() {
		return ""
	}
	return sc.SpanID().String()
}

func keyValueAttrs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
