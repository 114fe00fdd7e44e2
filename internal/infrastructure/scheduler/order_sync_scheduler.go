package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appintegration "github.com/erp/ordersync/internal/application/integration"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// AccountSyncer runs the token, fetch and reconcile pipeline for one account
type AccountSyncer interface {
	SyncAccount(ctx context.Context, account *integration.Account) (*appintegration.AccountSyncResult, error)
}

// AccountStore lists the accounts to sync and records their sync status
type AccountStore interface {
	ListSyncable(ctx context.Context) ([]integration.Account, error)
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status integration.AccountSyncStatus, lastSyncAt *time.Time, lastError string) error
}

// Failure kinds reported on the accounts.failed counter
const (
	failureKindAuth      = "auth"
	failureKindTransient = "transient"
	failureKindOther     = "other"
)

// ---------------------------------------------------------------------------
// OrderSyncSchedulerConfig
// ---------------------------------------------------------------------------

// OrderSyncSchedulerConfig holds configuration for the order sync scheduler
type OrderSyncSchedulerConfig struct {
	// Interval is the fixed period between cycles
	Interval time.Duration
	// StartupDelay is the wait before the first cycle after Start
	StartupDelay time.Duration
	// AccountDelay is the pause between two accounts of the same cycle
	AccountDelay time.Duration
	// CycleTimeout bounds one cycle; zero means no bound
	CycleTimeout time.Duration
}

// DefaultOrderSyncSchedulerConfig returns default configuration
func DefaultOrderSyncSchedulerConfig() OrderSyncSchedulerConfig {
	return OrderSyncSchedulerConfig{
		Interval:     10 * time.Minute,
		StartupDelay: 10 * time.Second,
		AccountDelay: 2 * time.Second,
	}
}

// Validate validates the configuration
func (c *OrderSyncSchedulerConfig) Validate() error {
	// cron @every schedules have one-second resolution
	if c.Interval < time.Second {
		return fmt.Errorf("%w: interval %s is below one second", ErrInvalidConfig, c.Interval)
	}
	if c.StartupDelay < 0 || c.AccountDelay < 0 || c.CycleTimeout < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// OrderSyncScheduler
// ---------------------------------------------------------------------------

// OrderSyncScheduler runs sync cycles: a first cycle after the startup delay,
// then one per interval. Accounts are synced one after another. A trigger that
// finds a cycle still running is skipped.
type OrderSyncScheduler struct {
	config   OrderSyncSchedulerConfig
	accounts AccountStore
	syncer   AccountSyncer
	lock     CycleLock
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	cron      *cron.Cron
	startup   *time.Timer
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	inProgress atomic.Bool

	// Cycle history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*SyncCycle
	maxHistory int
}

// OrderSyncSchedulerOption configures an OrderSyncScheduler
type OrderSyncSchedulerOption func(*OrderSyncScheduler)

// WithCycleLock adds a cross-instance guard around each cycle
func WithCycleLock(lock CycleLock) OrderSyncSchedulerOption {
	return func(s *OrderSyncScheduler) {
		s.lock = lock
	}
}

// WithSchedulerMetrics records account failures and cycle durations
func WithSchedulerMetrics(m *telemetry.SyncMetrics) OrderSyncSchedulerOption {
	return func(s *OrderSyncScheduler) {
		s.metrics = m
	}
}

// WithSchedulerClock overrides the clock used for sync timestamps
func WithSchedulerClock(now func() time.Time) OrderSyncSchedulerOption {
	return func(s *OrderSyncScheduler) {
		s.now = now
	}
}

// WithAccountSleeper overrides how the scheduler waits between accounts
func WithAccountSleeper(sleep func(ctx context.Context, d time.Duration) error) OrderSyncSchedulerOption {
	return func(s *OrderSyncScheduler) {
		s.sleep = sleep
	}
}

// NewOrderSyncScheduler creates a new order sync scheduler
func NewOrderSyncScheduler(
	config OrderSyncSchedulerConfig,
	accounts AccountStore,
	syncer AccountSyncer,
	logger *zap.Logger,
	opts ...OrderSyncSchedulerOption,
) (*OrderSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &OrderSyncScheduler{
		config:     config,
		accounts:   accounts,
		syncer:     syncer,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
		history:    make([]*SyncCycle, 0, 20),
		maxHistory: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the interval schedule and the one-shot startup cycle.
// Cycles run with a context derived from ctx.
func (s *OrderSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc("@every "+s.config.Interval.String(), s.trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	s.isRunning = true
	s.cron.Start()
	s.startup = time.AfterFunc(s.config.StartupDelay, s.trigger)

	s.logger.Info("Order sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("startup_delay", s.config.StartupDelay),
		zap.Duration("account_delay", s.config.AccountDelay),
		zap.Bool("cycle_lock", s.lock != nil),
	)
	return nil
}

// Stop stops scheduling new cycles and waits for an in-flight cycle until ctx
// is done. On timeout the in-flight cycle is canceled and ErrStopTimeout returned.
func (s *OrderSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.startup.Stop()
	s.cron.Stop()
	cancel := s.cancel
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("Order sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		s.logger.Warn("Order sync scheduler stop timed out, canceling running cycle")
		return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}
}

// IsRunning reports whether a sync cycle is currently executing
func (s *OrderSyncScheduler) IsRunning() bool {
	return s.inProgress.Load()
}

// trigger is the timer callback shared by the startup one-shot and the cron entry
func (s *OrderSyncScheduler) trigger() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	ctx := s.runCtx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	_, _ = s.RunCycle(ctx)
}

// RunCycle syncs every syncable account once. It returns ErrCycleInProgress
// without doing anything when another cycle holds the guard.
func (s *OrderSyncScheduler) RunCycle(ctx context.Context) (*SyncCycle, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Warn("Order sync cycle skipped, previous cycle still running")
		return nil, ErrCycleInProgress
	}
	defer s.inProgress.Store(false)

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrCycleLockNotObtained) {
				s.logger.Info("Order sync cycle skipped, lock held by another instance")
			} else {
				s.logger.Error("Failed to acquire order sync cycle lock", zap.Error(err))
			}
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release order sync cycle lock", zap.Error(err))
			}
		}()
	}

	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}

	cycle := NewSyncCycle(s.now())
	ctx, span := telemetry.StartCycleSpan(ctx, cycle.ID)
	defer span.End()

	log := s.logger.With(
		zap.String("cycle_id", cycle.ID.String()),
		zap.String("trace_id", telemetry.GetTraceID(ctx)),
	)

	var runErr error
	telemetry.CycleLabels().Do(ctx, func(c context.Context) {
		runErr = s.runAccounts(c, cycle, log)
	})

	if runErr != nil {
		cycle.Fail(s.now(), runErr.Error())
		telemetry.RecordError(span, runErr)
		log.Error("Order sync cycle aborted", zap.Error(runErr))
	} else {
		cycle.Complete(s.now())
	}

	telemetry.SetAttributes(span,
		"accounts", cycle.Accounts,
		"failed_accounts", cycle.FailedAccounts,
		telemetry.SpanAttrOrders, cycle.Orders,
		telemetry.SpanAttrMovements, cycle.Movements,
	)
	s.metrics.RecordCycle(ctx, cycle.Duration(), string(cycle.Status))

	log.Info("Order sync cycle finished",
		zap.String("status", string(cycle.Status)),
		zap.Duration("duration", cycle.Duration()),
		zap.Int("accounts", cycle.Accounts),
		zap.Int("failed_accounts", cycle.FailedAccounts),
		zap.Int("auth_failures", cycle.AuthFailures),
		zap.Int("partial_accounts", cycle.PartialAccounts),
		zap.Int("orders", cycle.Orders),
		zap.Int("movements", cycle.Movements),
		zap.Int("skipped_items", cycle.SkippedItems),
		zap.Int("malformed", cycle.Malformed),
		zap.Int("failed_orders", cycle.FailedOrders),
	)

	s.addToHistory(cycle)
	return cycle, runErr
}

// runAccounts syncs the accounts strictly in sequence
func (s *OrderSyncScheduler) runAccounts(ctx context.Context, cycle *SyncCycle, log *zap.Logger) error {
	accounts, err := s.accounts.ListSyncable(ctx)
	if err != nil {
		return fmt.Errorf("list syncable accounts: %w", err)
	}

	log.Info("Order sync cycle started", zap.Int("accounts", len(accounts)))

	for i := range accounts {
		if i > 0 && s.config.AccountDelay > 0 {
			if err := s.sleep(ctx, s.config.AccountDelay); err != nil {
				return err
			}
		}
		account := &accounts[i]
		result, err := s.syncer.SyncAccount(ctx, account)
		cycle.RecordAccount(result, err)
		s.recordAccountStatus(ctx, account, err, log)
	}
	return nil
}

// recordAccountStatus writes the account's sync status after one sync attempt.
// Auth failures move the account to ERROR; other failures keep its status.
func (s *OrderSyncScheduler) recordAccountStatus(ctx context.Context, account *integration.Account, syncErr error, log *zap.Logger) {
	log = log.With(zap.String("account_id", account.ID.String()))
	now := s.now()

	var lastSyncAt *time.Time
	switch {
	case syncErr == nil:
		account.MarkSynced(now)
		lastSyncAt = &now
	case integration.IsAuthError(syncErr):
		account.MarkErrored(syncErr.Error())
		s.metrics.RecordAccountFailure(ctx, account.ID, failureKindAuth)
		log.Warn("Account authorization failed, marking account as errored", zap.Error(syncErr))
	default:
		account.MarkSyncFailed(syncErr.Error())
		s.metrics.RecordAccountFailure(ctx, account.ID, failureKind(syncErr))
		log.Warn("Account sync failed", zap.Error(syncErr))
	}

	// Bookkeeping survives cycle cancellation so the last outcome is not lost.
	writeCtx := context.WithoutCancel(ctx)
	if err := s.accounts.UpdateSyncStatus(writeCtx, account.ID, account.SyncStatus, lastSyncAt, account.LastSyncError); err != nil {
		log.Error("Failed to record account sync status",
			zap.String("sync_status", account.SyncStatus.String()),
			zap.Error(err),
		)
	}
}

func failureKind(err error) string {
	switch {
	case integration.IsAuthError(err):
		return failureKindAuth
	case integration.IsTransient(err):
		return failureKindTransient
	default:
		return failureKindOther
	}
}

// addToHistory adds a finished cycle to history
func (s *OrderSyncScheduler) addToHistory(cycle *SyncCycle) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncCycle{cycle}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// RecentCycles returns the most recent finished cycles, newest first
func (s *OrderSyncScheduler) RecentCycles(limit int) []*SyncCycle {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*SyncCycle, limit)
	copy(result, s.history[:limit])
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
