package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/inventory"
	"github.com/google/uuid"
)

// StockMovementModel is the persistence model for the append-only stock ledger.
type StockMovementModel struct {
	ID         uuid.UUID                    `gorm:"type:uuid;primary_key"`
	Direction  inventory.MovementDirection  `gorm:"type:varchar(10);not null"`
	ProductID  uuid.UUID                    `gorm:"type:uuid;not null;index:idx_stock_movement_product_user,priority:1"`
	UserID     uuid.UUID                    `gorm:"type:uuid;not null;index:idx_stock_movement_product_user,priority:2"`
	Quantity   int64                        `gorm:"not null"`
	Reason     string                       `gorm:"type:text;not null"`
	OrderID    *uuid.UUID                   `gorm:"type:uuid;index"`
	SyncStatus inventory.MovementSyncStatus `gorm:"type:varchar(10);not null;default:'LOCAL'"`
	CreatedAt  time.Time                    `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:         m.ID,
		Direction:  m.Direction,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		Reason:     m.Reason,
		UserID:     m.UserID,
		OrderID:    m.OrderID,
		SyncStatus: m.SyncStatus,
		CreatedAt:  m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:         s.ID,
		Direction:  s.Direction,
		ProductID:  s.ProductID,
		UserID:     s.UserID,
		Quantity:   s.Quantity,
		Reason:     s.Reason,
		OrderID:    s.OrderID,
		SyncStatus: s.SyncStatus,
		CreatedAt:  s.CreatedAt,
	}
}

// ProductModel maps the columns of the catalog products table read during SKU resolution.
type ProductModel struct {
	EntityModel
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_product_user_sku,priority:1"`
	SKU    string    `gorm:"column:sku;type:varchar(100);not null;index:idx_product_user_sku,priority:2"`
	Name   string    `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to the read-only domain Product view.
func (m *ProductModel) ToDomain() *inventory.Product {
	return &inventory.Product{
		ID:     m.ID,
		UserID: m.UserID,
		SKU:    m.SKU,
		Name:   m.Name,
	}
}
