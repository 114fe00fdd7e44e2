package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

// openSQLite returns an in-memory database holding the sync tables. The pool
// is pinned to one connection, otherwise each connection sees its own
// empty :memory: database.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.SyncAccountModel{},
		&models.SyncedOrderModel{},
		&models.StockMovementModel{},
		&models.ProductModel{},
	))
	return db
}

// openMock returns a postgres-dialect gorm.DB over sqlmock, for asserting
// the exact SQL a repository issues. Pings are monitored.
func openMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(
		postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true},
	)
	require.NoError(t, err)
	return db, mock
}
