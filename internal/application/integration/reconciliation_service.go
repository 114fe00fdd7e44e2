package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/inventory"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OrderOutcome describes what reconciling one order did
type OrderOutcome struct {
	OrderID          string
	Created          bool
	Deducted         bool
	AlreadyProcessed bool
	MovementsCreated int
	SkippedNoSKU     int
	SkippedNoProduct int
}

// ReconcileSummary aggregates outcomes for a batch of orders
type ReconcileSummary struct {
	Orders           int
	Created          int
	Updated          int
	Deducted         int
	MovementsCreated int
	SkippedNoSKU     int
	SkippedNoProduct int
	Malformed        int
	Failed           int
}

// SkippedItems returns the number of line items skipped for SKU or product
func (s ReconcileSummary) SkippedItems() int {
	return s.SkippedNoSKU + s.SkippedNoProduct
}

func (s *ReconcileSummary) add(o OrderOutcome) {
	if o.Created {
		s.Created++
	} else {
		s.Updated++
	}
	if o.Deducted {
		s.Deducted++
	}
	s.MovementsCreated += o.MovementsCreated
	s.SkippedNoSKU += o.SkippedNoSKU
	s.SkippedNoProduct += o.SkippedNoProduct
}

// ReconciliationService merges fetched orders into the local mirror and
// applies automatic stock deduction at most once per order.
type ReconciliationService struct {
	txScope          TransactionScope
	autoDeductStatus integration.CanonicalStatus
	logger           *zap.Logger
	now              func() time.Time
}

// ReconciliationOption configures a ReconciliationService
type ReconciliationOption func(*ReconciliationService)

// WithReconciliationClock overrides the clock used for processed timestamps
func WithReconciliationClock(now func() time.Time) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.now = now
	}
}

// NewReconciliationService creates a ReconciliationService.
// autoDeductStatus is the canonical status that triggers stock deduction.
func NewReconciliationService(
	txScope TransactionScope,
	autoDeductStatus integration.CanonicalStatus,
	logger *zap.Logger,
	opts ...ReconciliationOption,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationService{
		txScope:          txScope,
		autoDeductStatus: autoDeductStatus,
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoDeductStatus returns the status that triggers deduction
func (s *ReconciliationService) AutoDeductStatus() integration.CanonicalStatus {
	return s.autoDeductStatus
}

// Reconcile processes a batch in fetch order. A failing order is logged and
// counted; the rest of the batch still runs.
func (s *ReconciliationService) Reconcile(
	ctx context.Context,
	account *integration.Account,
	orders []integration.ParsedOrder,
) ReconcileSummary {
	var summary ReconcileSummary

	for _, parsed := range orders {
		summary.Orders++

		if !parsed.OK() {
			summary.Malformed++
			s.logger.Warn("Skipping malformed order",
				zap.String("account_id", account.ID.String()),
				zap.String("external_order_id", parsed.Order.ExternalID),
				zap.Error(parsed.Err),
			)
			continue
		}

		outcome, err := s.ReconcileOrder(ctx, account, parsed.Order)
		if err != nil {
			summary.Failed++
			s.logger.Error("Failed to reconcile order",
				zap.String("account_id", account.ID.String()),
				zap.String("external_order_id", parsed.Order.ExternalID),
				zap.String("order_number", parsed.Order.Number),
				zap.Error(err),
			)
			continue
		}
		summary.add(outcome)
	}

	return summary
}

// ReconcileOrder upserts one order and, when its status is the auto-deduct
// status and it has not been processed, appends exit movements and flips the
// processed flag. All of it commits in one transaction.
func (s *ReconciliationService) ReconcileOrder(
	ctx context.Context,
	account *integration.Account,
	order integration.PlatformOrder,
) (OrderOutcome, error) {
	status := order.Status()
	outcome := OrderOutcome{OrderID: order.ExternalID}

	ctx, span := telemetry.StartOrderSpan(ctx, account.ID, order.ExternalID, status.Name())
	defer span.End()

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Reset counters in case the scope retries fn.
		outcome = OrderOutcome{OrderID: order.ExternalID}

		local, created, err := s.upsert(ctx, repos.OrderRepo(), account, order, status)
		if err != nil {
			return err
		}
		outcome.Created = created

		if !status.Equal(s.autoDeductStatus) {
			return nil
		}
		if local.Processed {
			outcome.AlreadyProcessed = true
			return nil
		}

		return s.deduct(ctx, repos, account, local, &outcome)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return OrderOutcome{OrderID: order.ExternalID}, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrMovements, outcome.MovementsCreated)

	if outcome.Deducted {
		s.logger.Info("Applied automatic stock deduction",
			zap.String("account_id", account.ID.String()),
			zap.String("external_order_id", order.ExternalID),
			zap.String("order_number", order.Number),
			zap.String("status", status.Name()),
			zap.Int("movements", outcome.MovementsCreated),
			zap.Int("skipped_no_sku", outcome.SkippedNoSKU),
			zap.Int("skipped_no_product", outcome.SkippedNoProduct),
		)
	}

	return outcome, nil
}

// upsert creates the order on first sighting or refreshes its snapshot.
func (s *ReconciliationService) upsert(
	ctx context.Context,
	repo integration.SalesOrderRepository,
	account *integration.Account,
	order integration.PlatformOrder,
	status integration.CanonicalStatus,
) (*integration.SalesOrder, bool, error) {
	existing, err := repo.FindByExternalID(ctx, account.ID, order.ExternalID)
	if err != nil && !errors.Is(err, integration.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("find order: %w", err)
	}

	if existing == nil {
		local, err := integration.NewSalesOrder(account.ID, order, status)
		if err != nil {
			return nil, false, err
		}
		if err := repo.Create(ctx, local); err != nil {
			return nil, false, fmt.Errorf("create order: %w", err)
		}
		return local, true, nil
	}

	existing.ApplySnapshot(order, status)
	if err := repo.UpdateSnapshot(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update order: %w", err)
	}
	return existing, false, nil
}

// deduct appends one exit movement per resolvable line and marks the order processed.
func (s *ReconciliationService) deduct(
	ctx context.Context,
	repos TransactionalRepositories,
	account *integration.Account,
	local *integration.SalesOrder,
	outcome *OrderOutcome,
) error {
	reason := DeductionReason(local.OrderNumber, local.Status)

	for _, item := range local.Items {
		sku := strings.TrimSpace(item.Code)
		if sku == "" {
			outcome.SkippedNoSKU++
			continue
		}

		product, err := repos.ProductLookup().FindBySKU(ctx, account.OwnerUserID, sku)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				outcome.SkippedNoProduct++
				s.logger.Warn("Product not found for SKU, skipping line",
					zap.String("account_id", account.ID.String()),
					zap.String("order_number", local.OrderNumber),
					zap.String("sku", sku),
				)
				continue
			}
			return fmt.Errorf("find product %q: %w", sku, err)
		}

		movement, err := inventory.NewOrderExitMovement(product.ID, account.OwnerUserID, local.ID, item.Quantity, reason)
		if err != nil {
			return fmt.Errorf("build movement for %q: %w", sku, err)
		}
		if err := repos.MovementRepo().Append(ctx, movement); err != nil {
			return fmt.Errorf("append movement for %q: %w", sku, err)
		}
		outcome.MovementsCreated++
	}

	processedAt := s.now()
	if err := repos.OrderRepo().MarkProcessed(ctx, local.ID, processedAt); err != nil {
		return err
	}
	if err := local.MarkProcessed(processedAt); err != nil {
		return err
	}
	outcome.Deducted = true
	return nil
}

// DeductionReason builds the ledger reason for an automatic deduction
func DeductionReason(orderNumber string, status integration.CanonicalStatus) string {
	return fmt.Sprintf("Automatic deduction for order #%s (status: %s)", orderNumber, status.Name())
}
