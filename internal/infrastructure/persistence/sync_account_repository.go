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

// GormAccountRepository implements integration.AccountRepository using GORM
type GormAccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// AccountRepositoryOption configures a GormAccountRepository
type AccountRepositoryOption func(*GormAccountRepository)

// WithAccountClock sets the clock stamping updated_at on token and status writes
func WithAccountClock(now func() time.Time) AccountRepositoryOption {
	return func(r *GormAccountRepository) {
		r.now = now
	}
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB, opts ...AccountRepositoryOption) *GormAccountRepository {
	r := &GormAccountRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Account, error) {
	var model models.SyncAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrAccountNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListSyncable returns the accounts a sync cycle should visit, oldest first
func (r *GormAccountRepository) ListSyncable(ctx context.Context) ([]integration.Account, error) {
	var accountModels []models.SyncAccountModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND sync_status <> ? AND refresh_token <> ''", true, integration.AccountSyncStatusDisconnected).
		Order("created_at ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]integration.Account, len(accountModels))
	for i, model := range accountModels {
		accounts[i] = *model.ToDomain()
	}
	return accounts, nil
}

// Save creates or fully updates an account
func (r *GormAccountRepository) Save(ctx context.Context, account *integration.Account) error {
	model := models.SyncAccountModelFromDomain(account)
	return r.db.WithContext(ctx).Save(model).Error
}

// UpdateTokens writes the three token columns in one statement
func (r *GormAccountRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncAccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
			"updated_at":       r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrAccountNotFound
	}
	return nil
}

// UpdateSyncStatus writes sync status and error; last_sync_at only when lastSyncAt is set
func (r *GormAccountRepository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status integration.AccountSyncStatus, lastSyncAt *time.Time, lastError string) error {
	updates := map[string]any{
		"sync_status":     status,
		"last_sync_error": lastError,
		"updated_at":      r.now(),
	}
	if lastSyncAt != nil {
		updates["last_sync_at"] = *lastSyncAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncAccountModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrAccountNotFound
	}
	return nil
}

// Ensure GormAccountRepository implements AccountRepository
var _ integration.AccountRepository = (*GormAccountRepository)(nil)
