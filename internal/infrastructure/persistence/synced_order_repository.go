package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSalesOrderRepository implements integration.SalesOrderRepository using GORM
type GormSalesOrderRepository struct {
	db *gorm.DB
}

// NewGormSalesOrderRepository creates a new GormSalesOrderRepository
func NewGormSalesOrderRepository(db *gorm.DB) *GormSalesOrderRepository {
	return &GormSalesOrderRepository{db: db}
}

// FindByExternalID finds an order by its (account, external id) key
func (r *GormSalesOrderRepository) FindByExternalID(ctx context.Context, accountID uuid.UUID, externalOrderID string) (*integration.SalesOrder, error) {
	var model models.SyncedOrderModel
	if err := r.db.WithContext(ctx).
		Where("external_order_id = ? AND account_id = ?", externalOrderID, accountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Create inserts a new order
func (r *GormSalesOrderRepository) Create(ctx context.Context, order *integration.SalesOrder) error {
	var model models.SyncedOrderModel
	if err := model.FromDomain(order); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// UpdateSnapshot writes the columns that follow the external order.
// processed and processed_at are not in the column list.
func (r *GormSalesOrderRepository) UpdateSnapshot(ctx context.Context, order *integration.SalesOrder) error {
	items, err := order.ItemsJSON()
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncedOrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"order_number":        order.OrderNumber,
			"status":              order.Status.Name(),
			"status_code":         order.Status.Code,
			"status_id":           order.StatusID,
			"customer_name":       order.CustomerName,
			"total_amount":        order.TotalAmount,
			"items_snapshot":      items,
			"external_created_at": order.ExternalCreatedAt,
			"updated_at":          order.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrOrderNotFound
	}
	return nil
}

// MarkProcessed flips processed only while it is still false
func (r *GormSalesOrderRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncedOrderModel{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": processedAt,
			"updated_at":   processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrOrderAlreadyProcessed
	}
	return nil
}

// CountByAccount counts mirrored orders for an account
func (r *GormSalesOrderRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncedOrderModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormSalesOrderRepository implements SalesOrderRepository
var _ integration.SalesOrderRepository = (*GormSalesOrderRepository)(nil)
