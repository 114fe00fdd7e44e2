package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/ordersync/internal/infrastructure/config"
)

const defaultConnectTimeout = 30 * time.Second

// Database is the postgres connection shared by every repository
type Database struct {
	DB *gorm.DB
}

// DatabaseOption configures Open
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	gormLogger     logger.Interface
	connectTimeout time.Duration
	onRetry        func(err error, next time.Duration)
}

// WithGormLogger routes GORM output through l
func WithGormLogger(l logger.Interface) DatabaseOption {
	return func(o *databaseOptions) { o.gormLogger = l }
}

// WithConnectTimeout bounds how long Open keeps retrying the first ping
func WithConnectTimeout(d time.Duration) DatabaseOption {
	return func(o *databaseOptions) { o.connectTimeout = d }
}

// WithConnectRetryNotify is called before each ping retry
func WithConnectRetryNotify(fn func(err error, next time.Duration)) DatabaseOption {
	return func(o *databaseOptions) { o.onRetry = fn }
}

// Open connects to postgres, sizes the pool from cfg and pings with
// exponential backoff until the server answers or the connect timeout ends.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := databaseOptions{
		gormLogger:     logger.Default.LogMode(logger.Silent),
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: o.gormLogger,
		// Reconciliation opens its own transaction per order
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(o.connectTimeout),
	}
	if o.onRetry != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(o.onRetry))
	}
	if _, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, sqlDB.PingContext(ctx)
	}, retryOpts...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to reach database %s/%s: %w", cfg.Addr(), cfg.DBName, err)
	}

	return &Database{DB: db}, nil
}

// Ping checks that the database still answers
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
