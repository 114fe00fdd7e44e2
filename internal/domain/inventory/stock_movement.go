package inventory

import (
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementDirection is the direction of a stock movement
type MovementDirection string

const (
	// MovementDirectionEntry adds to stock
	MovementDirectionEntry MovementDirection = "ENTRY"
	// MovementDirectionExit subtracts from stock
	MovementDirectionExit MovementDirection = "EXIT"
)

// IsValid returns true if the direction is valid
func (d MovementDirection) IsValid() bool {
	switch d {
	case MovementDirectionEntry, MovementDirectionExit:
		return true
	default:
		return false
	}
}

// String returns the string representation of MovementDirection
func (d MovementDirection) String() string {
	return string(d)
}

// MovementSyncStatus records where a movement came from
type MovementSyncStatus string

const (
	// MovementSyncStatusLocal is a movement recorded inside this system
	MovementSyncStatusLocal MovementSyncStatus = "LOCAL"
	// MovementSyncStatusSynced is a movement derived from an external order sync
	MovementSyncStatusSynced MovementSyncStatus = "SYNCED"
)

// IsValid returns true if the sync status is valid
func (s MovementSyncStatus) IsValid() bool {
	switch s {
	case MovementSyncStatusLocal, MovementSyncStatusSynced:
		return true
	default:
		return false
	}
}

// StockMovement is an immutable ledger entry.
// Quantity is always positive; Direction decides its sign in the stock fold.
type StockMovement struct {
	ID         uuid.UUID
	Direction  MovementDirection
	ProductID  uuid.UUID
	Quantity   int64
	Reason     string
	UserID     uuid.UUID
	OrderID    *uuid.UUID
	SyncStatus MovementSyncStatus
	CreatedAt  time.Time
}

// NewStockMovement creates a validated movement
func NewStockMovement(
	direction MovementDirection,
	productID uuid.UUID,
	userID uuid.UUID,
	quantity int64,
	reason string,
	syncStatus MovementSyncStatus,
) (*StockMovement, error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Movement direction must be ENTRY or EXIT")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Reason cannot be empty")
	}
	if !syncStatus.IsValid() {
		syncStatus = MovementSyncStatusLocal
	}

	return &StockMovement{
		ID:         uuid.New(),
		Direction:  direction,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		UserID:     userID,
		SyncStatus: syncStatus,
		CreatedAt:  time.Now(),
	}, nil
}

// NewOrderExitMovement creates the exit movement for one deducted order line
func NewOrderExitMovement(productID, userID, orderID uuid.UUID, quantity int64, reason string) (*StockMovement, error) {
	m, err := NewStockMovement(MovementDirectionExit, productID, userID, quantity, reason, MovementSyncStatusSynced)
	if err != nil {
		return nil, err
	}
	m.OrderID = &orderID
	return m, nil
}

// SignedQuantity returns the quantity with the sign of its direction
func (m *StockMovement) SignedQuantity() int64 {
	if m.Direction == MovementDirectionExit {
		return -m.Quantity
	}
	return m.Quantity
}
