package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository persists external accounts
type AccountRepository interface {
	// FindByID returns the account or ErrAccountNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// ListSyncable returns active, non-disconnected accounts that hold a refresh token,
	// ordered by creation time
	ListSyncable(ctx context.Context) ([]Account, error)

	// Save creates or fully updates an account
	Save(ctx context.Context, account *Account) error

	// UpdateTokens writes access token, refresh token and expiry in one statement
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error

	// UpdateSyncStatus writes the sync status, error message and (when non-nil) the last-sync time
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status AccountSyncStatus, lastSyncAt *time.Time, lastError string) error
}

// SalesOrderRepository persists the local order mirror
type SalesOrderRepository interface {
	// FindByExternalID looks up an order by its idempotency key; ErrOrderNotFound if absent
	FindByExternalID(ctx context.Context, accountID uuid.UUID, externalOrderID string) (*SalesOrder, error)

	// Create inserts a new order
	Create(ctx context.Context, order *SalesOrder) error

	// UpdateSnapshot writes the snapshot columns only; processed columns are left alone
	UpdateSnapshot(ctx context.Context, order *SalesOrder) error

	// MarkProcessed sets processed=true where it is still false.
	// It returns ErrOrderAlreadyProcessed when no row changed.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountByAccount returns the number of mirrored orders for an account
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}
