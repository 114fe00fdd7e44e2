package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// restoreGlobals puts back the otel globals Setup replaces
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

// shutdownNow stops p without waiting on an unreachable collector
func shutdownNow(p *Providers) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, Config{Enabled: false, ServiceName: "ordersync"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())
	assert.NotNil(t, p.Meter(MeterName))

	p.EnableSpanProfiles()
	assert.False(t, p.SpanProfilesEnabled())

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, zapcore.InfoLevel))
	assert.NoError(t, p.ForceFlush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestSetup_Enabled(t *testing.T) {
	restoreGlobals(t)

	// gRPC exporters connect lazily, so construction succeeds without a collector
	p, err := Setup(context.Background(), Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		Insecure:          true,
		ServiceName:       "ordersync-test",
		SamplingRatio:     0.5,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer shutdownNow(p)

	assert.True(t, p.TracingEnabled())
	assert.True(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())

	p.EnableSpanProfiles()
	p.EnableSpanProfiles()
	assert.True(t, p.SpanProfilesEnabled())
}

func TestBridgeLogger_FiltersExportedLevel(t *testing.T) {
	restoreGlobals(t)

	p, err := Setup(context.Background(), Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		Insecure:          true,
		ServiceName:       "ordersync-test",
		LogsEnabled:       true,
	}, nil)
	require.NoError(t, err)
	defer shutdownNow(p)
	require.True(t, p.LogsEnabled())

	core, local := observer.New(zapcore.DebugLevel)
	logger := p.BridgeLogger(zap.New(core), zapcore.WarnLevel)

	logger.Info("cycle started")
	logger.Warn("token refresh failed")
	assert.Equal(t, 2, local.Len(), "base core keeps its own level")
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestLevelFilterCore(t *testing.T) {
	base, logs := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: base, minLevel: zapcore.WarnLevel}

	logger := zap.New(filtered).With(zap.String("account_id", "a-1"))
	logger.Info("cycle started")
	logger.Warn("token refresh failed")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "token refresh failed", entries[0].Message)
	assert.Equal(t, "a-1", entries[0].ContextMap()["account_id"])
}
