package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncAccountModel is the persistence model for the Account entity.
type SyncAccountModel struct {
	EntityModel
	OwnerUserID    uuid.UUID                     `gorm:"type:uuid;not null;index"`
	ClientID       string                        `gorm:"type:varchar(255);not null"`
	ClientSecret   string                        `gorm:"type:varchar(255);not null"`
	AccessToken    string                        `gorm:"type:text"`
	RefreshToken   string                        `gorm:"type:text"`
	TokenExpiresAt *time.Time                    `gorm:"column:token_expires_at"`
	IsActive       bool                          `gorm:"not null;default:true"`
	SyncStatus     integration.AccountSyncStatus `gorm:"type:varchar(20);not null;default:'CONNECTED';index"`
	LastSyncAt     *time.Time
	LastSyncError  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncAccountModel) TableName() string {
	return "sync_accounts"
}

// ToDomain converts the persistence model to a domain Account entity.
func (m *SyncAccountModel) ToDomain() *integration.Account {
	return &integration.Account{
		Entity:         m.entity(),
		OwnerUserID:    m.OwnerUserID,
		ClientID:       m.ClientID,
		ClientSecret:   m.ClientSecret,
		AccessToken:    m.AccessToken,
		RefreshToken:   m.RefreshToken,
		TokenExpiresAt: m.TokenExpiresAt,
		IsActive:       m.IsActive,
		SyncStatus:     m.SyncStatus,
		LastSyncAt:     m.LastSyncAt,
		LastSyncError:  m.LastSyncError,
	}
}

// FromDomain populates the persistence model from a domain Account entity.
func (m *SyncAccountModel) FromDomain(a *integration.Account) {
	m.EntityModel = entityModel(a.Entity)
	m.OwnerUserID = a.OwnerUserID
	m.ClientID = a.ClientID
	m.ClientSecret = a.ClientSecret
	m.AccessToken = a.AccessToken
	m.RefreshToken = a.RefreshToken
	m.TokenExpiresAt = a.TokenExpiresAt
	m.IsActive = a.IsActive
	m.SyncStatus = a.SyncStatus
	m.LastSyncAt = a.LastSyncAt
	m.LastSyncError = a.LastSyncError
}

// SyncAccountModelFromDomain creates a new persistence model from a domain Account entity.
func SyncAccountModelFromDomain(a *integration.Account) *SyncAccountModel {
	m := &SyncAccountModel{}
	m.FromDomain(a)
	return m
}

// SyncedOrderModel is the persistence model for the SalesOrder mirror.
// (external_order_id, account_id) is the idempotency key.
type SyncedOrderModel struct {
	EntityModel
	ExternalOrderID   string                 `gorm:"type:text;not null;uniqueIndex:idx_synced_order_external_account,priority:1"`
	AccountID         uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_synced_order_external_account,priority:2;index"`
	OrderNumber       string                 `gorm:"type:text;not null"`
	Status            string                 `gorm:"type:text;not null"`
	StatusCode        integration.StatusCode `gorm:"type:varchar(30);not null"`
	StatusID          *int
	CustomerName      string          `gorm:"type:text"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ItemsSnapshot     string          `gorm:"type:text;not null"`
	Processed         bool            `gorm:"not null;default:false;index"`
	ProcessedAt       *time.Time
	ExternalCreatedAt *time.Time
}

// TableName returns the table name for GORM
func (SyncedOrderModel) TableName() string {
	return "synced_orders"
}

// ToDomain converts the persistence model to a domain SalesOrder entity.
func (m *SyncedOrderModel) ToDomain() (*integration.SalesOrder, error) {
	order := &integration.SalesOrder{
		Entity:            m.entity(),
		ExternalOrderID:   m.ExternalOrderID,
		AccountID:         m.AccountID,
		OrderNumber:       m.OrderNumber,
		Status:            statusFromColumns(m.StatusCode, m.Status),
		StatusID:          m.StatusID,
		CustomerName:      m.CustomerName,
		TotalAmount:       m.TotalAmount,
		Items:             make([]integration.PlatformOrderItem, 0),
		Processed:         m.Processed,
		ProcessedAt:       m.ProcessedAt,
		ExternalCreatedAt: m.ExternalCreatedAt,
	}

	if m.ItemsSnapshot != "" {
		if err := json.Unmarshal([]byte(m.ItemsSnapshot), &order.Items); err != nil {
			return nil, fmt.Errorf("decode items snapshot of order %s: %w", m.ID, err)
		}
	}

	return order, nil
}

// FromDomain populates the persistence model from a domain SalesOrder entity.
func (m *SyncedOrderModel) FromDomain(o *integration.SalesOrder) error {
	items, err := o.ItemsJSON()
	if err != nil {
		return fmt.Errorf("encode items snapshot: %w", err)
	}

	m.EntityModel = entityModel(o.Entity)
	m.ExternalOrderID = o.ExternalOrderID
	m.AccountID = o.AccountID
	m.OrderNumber = o.OrderNumber
	m.Status = o.Status.Name()
	m.StatusCode = o.Status.Code
	m.StatusID = o.StatusID
	m.CustomerName = o.CustomerName
	m.TotalAmount = o.TotalAmount
	m.ItemsSnapshot = items
	m.Processed = o.Processed
	m.ProcessedAt = o.ProcessedAt
	m.ExternalCreatedAt = o.ExternalCreatedAt
	return nil
}

func statusFromColumns(code integration.StatusCode, name string) integration.CanonicalStatus {
	if code == integration.StatusCodeRaw || !code.IsValid() {
		return integration.RawStatus(name)
	}
	return integration.StatusOf(code)
}
