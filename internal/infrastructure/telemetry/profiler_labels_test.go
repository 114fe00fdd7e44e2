package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func collectLabels(ctx context.Context) map[string]string {
	got := map[string]string{}
	pprof.ForLabels(ctx, func(key, value string) bool {
		got[key] = value
		return true
	})
	return got
}

func TestAccountLabels_Do(t *testing.T) {
	accountID := uuid.New()

	var got map[string]string
	AccountLabels(accountID).Do(context.Background(), func(ctx context.Context) {
		got = collectLabels(ctx)
	})

	assert.Equal(t, map[string]string{
		"operation": "sync_account",
		"account":   accountID.String(),
	}, got)
}

func TestProfileLabels_RegionNestsInsideAccount(t *testing.T) {
	labels := AccountLabels(uuid.New())

	var inner map[string]string
	labels.Do(context.Background(), func(ctx context.Context) {
		labels.In(RegionOrderFetch).Do(ctx, func(c context.Context) {
			inner = collectLabels(c)
		})
	})

	assert.Equal(t, RegionOrderFetch, inner[LabelRegion])
	assert.Equal(t, OperationSyncAccount, inner[LabelOperation])
	_, hasRegion := labels[LabelRegion]
	assert.False(t, hasRegion, "In must not modify the base labels")
}

func TestProfileLabels_EmptyRunsOnSameContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	called := false
	ProfileLabels(nil).Do(ctx, func(c context.Context) {
		called = true
		assert.Equal(t, ctx, c)
	})
	assert.True(t, called)
}

func TestProfileLabels_Pairs(t *testing.T) {
	pairs := ProfileLabels{
		"Region":            "order-fetch",
		"external_order_id": "9001001",
		"empty":             "",
		"long":              strings.Repeat("x", MaxLabelValueLength+10),
		"!!!":               "dropped",
	}.pairs()

	// ordered by the original key, so "Region" precedes "long"
	assert.Equal(t, []string{
		"region", "order-fetch",
		"long", strings.Repeat("x", MaxLabelValueLength),
	}, pairs)
}

func TestLabelKey(t *testing.T) {
	assert.Equal(t, "sync_account", labelKey("Sync-Account"))
	assert.Equal(t, "a_b", labelKey("a b"))
	assert.Equal(t, "", labelKey("$%"))
}

func TestCycleLabels(t *testing.T) {
	assert.Equal(t, ProfileLabels{LabelOperation: OperationSyncCycle}, CycleLabels())
}
