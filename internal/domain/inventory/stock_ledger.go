package inventory

import (
	"context"

	"github.com/google/uuid"
)

// FoldStock computes current stock as the signed sum of movements.
// Entries add, exits subtract.
func FoldStock(movements []StockMovement) int64 {
	var stock int64
	for i := range movements {
		stock += movements[i].SignedQuantity()
	}
	return stock
}

// Product is the read-only view of a catalog product used for SKU resolution
type Product struct {
	ID     uuid.UUID
	UserID uuid.UUID
	SKU    string
	Name   string
}

// StockMovementRepository is the append-only store of stock movements
type StockMovementRepository interface {
	// Append inserts a movement. Movements are never updated or deleted.
	Append(ctx context.Context, movement *StockMovement) error

	// FindByOrder returns the movements created for an order, oldest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]StockMovement, error)

	// FindByProduct returns a product's movements for one user, oldest first
	FindByProduct(ctx context.Context, productID, userID uuid.UUID) ([]StockMovement, error)

	// CurrentStock returns the stock fold for a product/user pair
	CurrentStock(ctx context.Context, productID, userID uuid.UUID) (int64, error)
}

// ProductLookup resolves products by SKU. Products belong to another
// part of the system and are never written here.
type ProductLookup interface {
	// FindBySKU returns the user's product with the SKU, or shared.ErrNotFound
	FindBySKU(ctx context.Context, userID uuid.UUID, sku string) (*Product, error)
}
