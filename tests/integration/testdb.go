// Package integration runs the order sync pipeline against real PostgreSQL
// and Redis containers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/migration"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
)

// TestDB is a migrated sync database in a throwaway container
type TestDB struct {
	DB  *gorm.DB
	cfg config.DatabaseConfig
	t   *testing.T
}

// NewTestDB starts PostgreSQL, applies every migration and opens the
// database the same way the server does. Skipped under -short.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ordersync_test"),
		tcpostgres.WithUsername("ordersync"),
		tcpostgres.WithPassword("ordersync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	tdb := &TestDB{
		cfg: config.DatabaseConfig{
			Host:         host,
			Port:         portNum,
			User:         "ordersync",
			Password:     "ordersync",
			DBName:       "ordersync_test",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		t: t,
	}
	tdb.migrate()

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.Open(ctx, &tdb.cfg,
		persistence.WithGormLogger(logger.NewGormLogger(zaptest.NewLogger(t), level)),
		persistence.WithConnectTimeout(30*time.Second),
	)
	require.NoError(t, err, "open sync database")
	t.Cleanup(func() { _ = db.Close() })

	tdb.DB = db.DB
	return tdb
}

// migrate applies all migrations on a connection of its own; closing the
// Migrator closes the connection it was handed.
func (tdb *TestDB) migrate() {
	t := tdb.t
	t.Helper()

	dir := migrationsDir()
	require.NotEmpty(t, dir, "migrations directory not found")

	sqlDB, err := sql.Open("postgres", tdb.cfg.DSN())
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migration.Config{MigrationsPath: dir}, zaptest.NewLogger(t))
	require.NoError(t, err, "create migrator")
	defer m.Close()

	require.NoError(t, m.Up(), "apply migrations")
}

// migrationsDir walks up from this file to the repository's migrations directory
func migrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}

// CreateTestAccount inserts a connected account holding a refresh token
func (tdb *TestDB) CreateTestAccount(ownerUserID uuid.UUID) *integration.Account {
	tdb.t.Helper()

	account, err := integration.NewAccount(ownerUserID, "client-id", "client-secret", "refresh-1")
	require.NoError(tdb.t, err)

	err = tdb.DB.Exec(`
		INSERT INTO sync_accounts (id, owner_user_id, client_id, client_secret, refresh_token, is_active, sync_status)
		VALUES (?, ?, ?, ?, ?, TRUE, 'CONNECTED')
	`, account.ID, account.OwnerUserID, account.ClientID, account.ClientSecret, account.RefreshToken).Error
	require.NoError(tdb.t, err, "insert account")

	return account
}

// CreateTestProduct inserts a product resolvable by SKU for the given user
func (tdb *TestDB) CreateTestProduct(userID uuid.UUID, sku string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`INSERT INTO products (id, user_id, sku, name) VALUES (?, ?, ?, ?)`,
		id, userID, sku, "Product "+sku).Error
	require.NoError(tdb.t, err, "insert product")

	return id
}
