package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appintegration "github.com/erp/ordersync/internal/application/integration"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/ecommerce"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

func main() {
	// A missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"service": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tel, log, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log.Info("Starting order sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("sync_enabled", cfg.Sync.Enabled),
	)

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold),
	)
	db, err := persistence.Open(ctx, &cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithConnectRetryNotify(func(err error, next time.Duration) {
			log.Warn("Database not reachable yet", zap.Duration("retry_in", next), zap.Error(err))
		}),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.SlowQueryThreshold = cfg.Database.SlowThreshold
		if err := telemetry.InstrumentDB(db.DB, dbTracing, log); err != nil {
			log.Fatal("Failed to instrument database", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		poolMetrics, err := telemetry.RegisterDBPoolMetrics(tel.providers.Meter(telemetry.MeterName), sqlDB)
		if err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		} else {
			defer func() { _ = poolMetrics.Stop() }()
		}
	}

	syncMetrics, err := telemetry.NewSyncMetrics(tel.providers.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Repositories and services
	accountRepo := persistence.NewGormAccountRepository(db.DB)

	platformCfg := &ecommerce.PlatformConfig{
		TokenURL:             cfg.Platform.TokenURL,
		BaseURL:              cfg.Platform.BaseURL,
		OrdersPath:           cfg.Platform.OrdersPath,
		Timeout:              cfg.Platform.Timeout,
		PageSize:             cfg.Platform.PageSize,
		MaxPages:             cfg.Platform.MaxPages,
		PageDelay:            cfg.Platform.PageDelay,
		TokenLeeway:          cfg.Platform.TokenLeeway,
		DefaultTokenLifetime: cfg.Platform.DefaultTokenLifetime,
	}
	tokens, err := ecommerce.NewTokenManager(platformCfg, accountRepo, log.Named("token_manager"))
	if err != nil {
		log.Fatal("Failed to create token manager", zap.Error(err))
	}
	orders, err := ecommerce.NewOrderClient(platformCfg, log.Named("order_client"))
	if err != nil {
		log.Fatal("Failed to create order client", zap.Error(err))
	}

	reconciler := appintegration.NewReconciliationService(
		persistence.NewGormTransactionScope(db.DB),
		integration.ParseCanonicalStatus(cfg.Sync.AutoDeductStatus),
		log.Named("reconciliation"),
	)
	syncService := appintegration.NewOrderSyncService(tokens, orders, reconciler, log.Named("order_sync"),
		appintegration.WithLookbackWindow(cfg.Sync.LookbackWindow),
		appintegration.WithSyncMetrics(syncMetrics),
	)

	// Scheduler, optionally guarded across instances by a Redis lock
	schedulerOpts := []scheduler.OrderSyncSchedulerOption{scheduler.WithSchedulerMetrics(syncMetrics)}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close redis", zap.Error(err))
			}
		}()
		schedulerOpts = append(schedulerOpts, scheduler.WithCycleLock(
			scheduler.NewRedisCycleLock(redisClient, cfg.Redis.LockKey, cfg.Redis.LockTTL),
		))
		log.Info("Redis cycle lock enabled", zap.String("key", cfg.Redis.LockKey), zap.Duration("ttl", cfg.Redis.LockTTL))
	}

	syncScheduler, err := scheduler.NewOrderSyncScheduler(scheduler.OrderSyncSchedulerConfig{
		Interval:     cfg.Sync.Interval,
		StartupDelay: cfg.Sync.StartupDelay,
		AccountDelay: cfg.Sync.AccountDelay,
		CycleTimeout: cfg.Sync.CycleTimeout,
	}, accountRepo, syncService, log.Named("scheduler"), schedulerOpts...)
	if err != nil {
		log.Fatal("Failed to create order sync scheduler", zap.Error(err))
	}

	if cfg.Sync.Enabled {
		if err := syncScheduler.Start(context.WithoutCancel(ctx)); err != nil {
			log.Fatal("Failed to start order sync scheduler", zap.Error(err))
		}
	} else {
		log.Info("Order sync scheduler is disabled")
	}

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down order sync engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.StopTimeout)
	defer cancel()

	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Order sync scheduler did not stop cleanly", zap.Error(err))
	}
	tel.shutdown(shutdownCtx, log)

	log.Info("Order sync engine exited")
}

// telemetryStack holds what must be flushed on shutdown
type telemetryStack struct {
	providers *telemetry.Providers
	profiler  *telemetry.Profiler
}

// setupTelemetry starts the OTLP providers and the profiler. It returns the
// logger to use from now on, which tees into OTLP when logs are exported.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, *zap.Logger, error) {
	tc := cfg.Telemetry

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		Insecure:          tc.Insecure,
		ServiceName:       tc.ServiceName,
		SamplingRatio:     tc.SamplingRatio,
		ExportInterval:    tc.ExportInterval,
		LogsEnabled:       tc.LogsEnabled,
	}, log)
	if err != nil {
		return nil, log, err
	}
	log = providers.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilerAddress,
		ApplicationName: tc.ServiceName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, log, err
	}
	if profiler.IsEnabled() {
		providers.EnableSpanProfiles()
	}

	return &telemetryStack{providers: providers, profiler: profiler}, log, nil
}

// shutdown stops the profiler, then flushes the OTLP providers
func (t *telemetryStack) shutdown(ctx context.Context, log *zap.Logger) {
	if err := errors.Join(t.profiler.Stop(), t.providers.Shutdown(ctx)); err != nil {
		log.Warn("Telemetry shutdown incomplete", zap.Error(err))
	}
}
