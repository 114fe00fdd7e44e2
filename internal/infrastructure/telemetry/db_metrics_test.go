package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader, provider := newTestMeter(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)
	require.NoError(t, sqlDB.Ping())

	m, err := telemetry.RegisterDBPoolMetrics(provider.Meter(telemetry.MeterName), sqlDB)
	require.NoError(t, err)

	metrics := collect(t, reader)
	maxGauge, ok := metrics["db_pool_connections_max"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, maxGauge.DataPoints, 1)
	assert.Equal(t, int64(4), maxGauge.DataPoints[0].Value)

	conns, ok := metrics["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Len(t, conns.DataPoints, 3)

	require.NoError(t, m.Stop())
}

func TestRegisterDBPoolMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.RegisterDBPoolMetrics(nil, nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}
