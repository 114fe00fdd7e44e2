package integration

import (
	"context"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLookbackWindow is how far back each sync asks for changed orders
const DefaultLookbackWindow = 24 * time.Hour

// AccountSyncResult is the outcome of syncing one account
type AccountSyncResult struct {
	AccountID uuid.UUID
	StartedAt time.Time
	Since     time.Time
	Pages     int
	Partial   bool
	Summary   ReconcileSummary
	// FetchErr is the page error that cut pagination short, if any
	FetchErr error
}

// OrderSyncService runs the token, fetch and reconcile pipeline for one account.
type OrderSyncService struct {
	tokens     integration.TokenProvider
	fetcher    integration.OrderFetcher
	reconciler *ReconciliationService
	lookback   time.Duration
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// OrderSyncOption configures an OrderSyncService
type OrderSyncOption func(*OrderSyncService)

// WithLookbackWindow sets how far back orders are requested
func WithLookbackWindow(d time.Duration) OrderSyncOption {
	return func(s *OrderSyncService) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithSyncMetrics records reconciliation counts per account
func WithSyncMetrics(m *telemetry.SyncMetrics) OrderSyncOption {
	return func(s *OrderSyncService) {
		s.metrics = m
	}
}

// WithSyncClock overrides the clock used to compute the since-date
func WithSyncClock(now func() time.Time) OrderSyncOption {
	return func(s *OrderSyncService) {
		s.now = now
	}
}

// NewOrderSyncService creates an OrderSyncService
func NewOrderSyncService(
	tokens integration.TokenProvider,
	fetcher integration.OrderFetcher,
	reconciler *ReconciliationService,
	logger *zap.Logger,
	opts ...OrderSyncOption,
) *OrderSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderSyncService{
		tokens:     tokens,
		fetcher:    fetcher,
		reconciler: reconciler,
		lookback:   DefaultLookbackWindow,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncAccount makes sure the account has a valid token, fetches its recent
// orders and reconciles whatever was fetched. Orders fetched before a page
// failure are still reconciled; the page failure is then returned.
// Token failures return before anything is fetched.
func (s *OrderSyncService) SyncAccount(ctx context.Context, account *integration.Account) (*AccountSyncResult, error) {
	ctx, span := telemetry.StartAccountSpan(ctx, account.ID)

	var (
		result *AccountSyncResult
		err    error
	)
	labels := telemetry.AccountLabels(account.ID)
	labels.Do(ctx, func(c context.Context) {
		result, err = s.syncAccount(c, account, labels)
	})
	if result != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrPages, result.Pages,
			telemetry.SpanAttrPartial, result.Partial,
			telemetry.SpanAttrOrders, result.Summary.Orders,
			telemetry.SpanAttrMovements, result.Summary.MovementsCreated,
		)
	}
	telemetry.FinishSpan(span, err)
	return result, err
}

func (s *OrderSyncService) syncAccount(ctx context.Context, account *integration.Account, labels telemetry.ProfileLabels) (*AccountSyncResult, error) {
	startedAt := s.now()
	result := &AccountSyncResult{
		AccountID: account.ID,
		StartedAt: startedAt,
		Since:     startedAt.Add(-s.lookback),
	}

	var (
		token string
		err   error
	)
	labels.In(telemetry.RegionTokenRefresh).Do(ctx, func(c context.Context) {
		token, err = s.tokens.EnsureValidToken(c, account)
	})
	if err != nil {
		return result, err
	}

	var fetch integration.FetchResult
	labels.In(telemetry.RegionOrderFetch).Do(ctx, func(c context.Context) {
		fetch = s.fetcher.FetchRecent(c, account, token, result.Since)
	})
	result.Pages = fetch.Pages
	result.Partial = fetch.Partial
	result.FetchErr = fetch.Err

	labels.In(telemetry.RegionReconcile).Do(ctx, func(c context.Context) {
		result.Summary = s.reconciler.Reconcile(c, account, fetch.Orders)
	})
	s.metrics.RecordReconciliation(ctx, account.ID,
		result.Summary.Orders-result.Summary.Malformed-result.Summary.Failed,
		result.Summary.MovementsCreated,
		result.Summary.SkippedNoSKU,
		result.Summary.SkippedNoProduct,
	)

	s.logger.Info("Account sync finished",
		zap.String("account_id", account.ID.String()),
		zap.Int("pages", fetch.Pages),
		zap.Bool("partial", fetch.Partial),
		zap.Int("orders", result.Summary.Orders),
		zap.Int("created", result.Summary.Created),
		zap.Int("updated", result.Summary.Updated),
		zap.Int("deducted", result.Summary.Deducted),
		zap.Int("movements", result.Summary.MovementsCreated),
		zap.Int("skipped_items", result.Summary.SkippedItems()),
		zap.Int("malformed", result.Summary.Malformed),
		zap.Int("failed", result.Summary.Failed),
	)

	return result, fetch.Err
}
