package persistence

import (
	"context"

	"gorm.io/gorm"

	appintegration "github.com/erp/ordersync/internal/application/integration"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/inventory"
)

var (
	_ appintegration.TransactionScope          = (*GormTransactionScope)(nil)
	_ appintegration.TransactionalRepositories = (*txRepositories)(nil)
)

// GormTransactionScope gives every reconciled order its own transaction:
// the upsert, any EXIT movements and the processed flag commit together.
type GormTransactionScope struct {
	db *gorm.DB
}

func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute commits when fn returns nil and rolls back otherwise
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(appintegration.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newTxRepositories(tx))
	})
}

// txRepositories binds each repository to the same *gorm.DB transaction
type txRepositories struct {
	orders    *GormSalesOrderRepository
	movements *GormStockMovementRepository
	products  *GormProductRepository
}

func newTxRepositories(tx *gorm.DB) *txRepositories {
	return &txRepositories{
		orders:    NewGormSalesOrderRepository(tx),
		movements: NewGormStockMovementRepository(tx),
		products:  NewGormProductRepository(tx),
	}
}

func (r *txRepositories) OrderRepo() integration.SalesOrderRepository     { return r.orders }
func (r *txRepositories) MovementRepo() inventory.StockMovementRepository { return r.movements }
func (r *txRepositories) ProductLookup() inventory.ProductLookup          { return r.products }
