package integration

import (
	"context"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/inventory"
)

// TransactionScope provides transactional access to the repositories touched by
// reconciliation. Everything done through the repositories handed to fn is
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
//   - OrderRepo: the local order mirror, upserted and flagged processed
//   - MovementRepo: the append-only stock ledger
//   - ProductLookup: read-only SKU resolution, read inside the same snapshot
type TransactionalRepositories interface {
	OrderRepo() integration.SalesOrderRepository
	MovementRepo() inventory.StockMovementRepository
	ProductLookup() inventory.ProductLookup
}

// NoOpTransactionScope runs the function directly against the given repositories.
// It is meant for tests that do not exercise rollback.
type NoOpTransactionScope struct {
	orderRepo     integration.SalesOrderRepository
	movementRepo  inventory.StockMovementRepository
	productLookup inventory.ProductLookup
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	orderRepo integration.SalesOrderRepository,
	movementRepo inventory.StockMovementRepository,
	productLookup inventory.ProductLookup,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		orderRepo:     orderRepo,
		movementRepo:  movementRepo,
		productLookup: productLookup,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// OrderRepo returns the order repository.
func (s *NoOpTransactionScope) OrderRepo() integration.SalesOrderRepository {
	return s.orderRepo
}

// MovementRepo returns the stock movement repository.
func (s *NoOpTransactionScope) MovementRepo() inventory.StockMovementRepository {
	return s.movementRepo
}

// ProductLookup returns the product lookup.
func (s *NoOpTransactionScope) ProductLookup() inventory.ProductLookup {
	return s.productLookup
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
