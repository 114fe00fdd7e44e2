package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/inventory"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStockMovementRepository_CurrentStock(t *testing.T) {
	db := openSQLite(t)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()

	productID := uuid.New()
	userID := uuid.New()

	entry, err := inventory.NewStockMovement(inventory.MovementDirectionEntry, productID, userID, 10, "Initial count", inventory.MovementSyncStatusLocal)
	require.NoError(t, err)
	entry.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Append(ctx, entry))

	orderID := uuid.New()
	exit, err := inventory.NewOrderExitMovement(productID, userID, orderID, 3, "Automatic deduction for order #1001 (status: Verified)")
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, exit))

	// another user's movement of the same product is not counted
	other, err := inventory.NewStockMovement(inventory.MovementDirectionEntry, productID, uuid.New(), 50, "Other user", inventory.MovementSyncStatusLocal)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, other))

	stock, err := repo.CurrentStock(ctx, productID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stock)

	movements, err := repo.FindByProduct(ctx, productID, userID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, inventory.MovementDirectionEntry, movements[0].Direction)
	assert.Equal(t, inventory.MovementDirectionExit, movements[1].Direction)
	assert.Equal(t, stock, inventory.FoldStock(movements))

	byOrder, err := repo.FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, inventory.MovementSyncStatusSynced, byOrder[0].SyncStatus)
}

func TestGormStockMovementRepository_EmptyStockIsZero(t *testing.T) {
	db := openSQLite(t)
	repo := NewGormStockMovementRepository(db)

	stock, err := repo.CurrentStock(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)
}

func TestGormProductRepository_FindBySKU(t *testing.T) {
	db := openSQLite(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	product := &models.ProductModel{
		EntityModel: models.EntityModel{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		UserID:      userID,
		SKU:         "X",
		Name:        "Widget",
	}
	require.NoError(t, db.Create(product).Error)

	found, err := repo.FindBySKU(ctx, userID, "X")
	require.NoError(t, err)
	assert.Equal(t, product.ID, found.ID)
	assert.Equal(t, "Widget", found.Name)

	_, err = repo.FindBySKU(ctx, userID, "x")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindBySKU(ctx, uuid.New(), "X")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
