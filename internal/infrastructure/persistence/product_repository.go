package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/ordersync/internal/domain/inventory"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

// GormProductRepository resolves catalog products by SKU. The catalog is
// owned elsewhere; this repository never writes to it.
type GormProductRepository struct {
	db *gorm.DB
}

var _ inventory.ProductLookup = (*GormProductRepository)(nil)

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySKU matches the SKU exactly within the user's catalog. A miss
// returns an error matching shared.ErrNotFound.
func (r *GormProductRepository) FindBySKU(ctx context.Context, userID uuid.UUID, sku string) (*inventory.Product, error) {
	var model models.ProductModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sku = ?", userID, sku).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NotFound("product with SKU", sku)
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}
