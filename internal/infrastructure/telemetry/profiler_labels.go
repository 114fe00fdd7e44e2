package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/grafana/pyroscope-go"
)

// Profile label keys
const (
	LabelOperation = "operation"
	LabelAccount   = "account"
	LabelRegion    = "region"
)

// Operations
const (
	OperationSyncCycle   = "sync_cycle"
	OperationSyncAccount = "sync_account"
)

// Regions inside one account sync
const (
	RegionTokenRefresh = "token_refresh"
	RegionOrderFetch   = "order_fetch"
	RegionReconcile    = "reconcile"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// droppedLabels never reach pprof; there is one value per order or span.
var droppedLabels = map[string]bool{
	"order_id":          true,
	"external_order_id": true,
	"trace_id":          true,
	"span_id":           true,
}

// ProfileLabels are the pprof labels Pyroscope slices sync profiles by.
// Methods return copies, so a base set can be shared.
type ProfileLabels map[string]string

// CycleLabels labels the work of one scheduler cycle
func CycleLabels() ProfileLabels {
	return ProfileLabels{LabelOperation: OperationSyncCycle}
}

// AccountLabels labels the sync of one account
func AccountLabels(accountID uuid.UUID) ProfileLabels {
	return ProfileLabels{
		LabelOperation: OperationSyncAccount,
		LabelAccount:   accountID.String(),
	}
}

// In returns a copy of l scoped to region
func (l ProfileLabels) In(region string) ProfileLabels {
	return l.With(LabelRegion, region)
}

// With returns a copy of l with key set to value
func (l ProfileLabels) With(key, value string) ProfileLabels {
	out := make(ProfileLabels, len(l)+1)
	maps.Copy(out, l)
	out[key] = value
	return out
}

// Do runs fn with l attached as pprof labels. Without usable labels fn
// runs on ctx unchanged.
func (l ProfileLabels) Do(ctx context.Context, fn func(context.Context)) {
	pairs := l.pairs()
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// pairs flattens l into key, value pairs ordered by original key. Empty
// values, per-order keys and keys with no label characters are left out.
func (l ProfileLabels) pairs() []string {
	pairs := make([]string, 0, len(l)*2)
	for _, key := range slices.Sorted(maps.Keys(l)) {
		value := l[key]
		if value == "" || droppedLabels[key] {
			continue
		}
		name := labelKey(key)
		if name == "" {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, name, value)
	}
	return pairs
}

// labelKey lowercases key, turns spaces and dashes into underscores and
// drops every other character outside [a-z0-9_].
func labelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-':
			return '_'
		default:
			return -1
		}
	}, key)
}
