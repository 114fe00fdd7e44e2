package integration

import (
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Account Sync Status
// ---------------------------------------------------------------------------

// AccountSyncStatus represents the connection state of an external account
type AccountSyncStatus string

const (
	// AccountSyncStatusConnected means the account is authorized and syncing
	AccountSyncStatusConnected AccountSyncStatus = "CONNECTED"
	// AccountSyncStatusDisconnected means the account has been disconnected by a user
	AccountSyncStatusDisconnected AccountSyncStatus = "DISCONNECTED"
	// AccountSyncStatusError means the last sync attempt failed authorization
	AccountSyncStatusError AccountSyncStatus = "ERROR"
)

// IsValid returns true if the status is valid
func (s AccountSyncStatus) IsValid() bool {
	switch s {
	case AccountSyncStatusConnected, AccountSyncStatusDisconnected, AccountSyncStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of AccountSyncStatus
func (s AccountSyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

// Account is one connection to the external order API.
// Token fields are written by the token manager only; sync status and
// last-sync timestamp are written by the scheduler only.
type Account struct {
	shared.Entity
	// OwnerUserID is the user whose stock is deducted by this account's orders
	OwnerUserID uuid.UUID
	// ClientID is the OAuth2 client identifier
	ClientID string
	// ClientSecret is the OAuth2 client secret
	ClientSecret string
	// AccessToken is the current bearer token
	AccessToken string
	// RefreshToken is used to obtain a new access token
	RefreshToken string
	// TokenExpiresAt is when AccessToken stops being valid (nil if unknown)
	TokenExpiresAt *time.Time
	// IsActive indicates the account takes part in sync cycles
	IsActive bool
	// SyncStatus is the current connection state
	SyncStatus AccountSyncStatus
	// LastSyncAt is when the last successful sync finished
	LastSyncAt *time.Time
	// LastSyncError holds the last failure message, empty after a successful sync
	LastSyncError string
}

// NewAccount creates a connected account from OAuth2 client credentials and an
// initial refresh token obtained by the account-connection flow.
func NewAccount(ownerUserID uuid.UUID, clientID, clientSecret, refreshToken string) (*Account, error) {
	if ownerUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Account owner cannot be empty")
	}
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Client ID and secret are required")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, shared.NewDomainError("INVALID_REFRESH_TOKEN", "Refresh token is required")
	}

	return &Account{
		Entity:       shared.NewEntity(),
		OwnerUserID:  ownerUserID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		IsActive:     true,
		SyncStatus:   AccountSyncStatusConnected,
	}, nil
}

// HasCredentials returns true if the account has everything needed for a token refresh
func (a *Account) HasCredentials() bool {
	return a.ClientID != "" && a.ClientSecret != "" && a.RefreshToken != ""
}

// TokenExpired reports whether the access token must be refreshed at now.
// A missing token or expiry counts as expired. leeway refreshes slightly early.
func (a *Account) TokenExpired(now time.Time, leeway time.Duration) bool {
	if a.AccessToken == "" || a.TokenExpiresAt == nil {
		return true
	}
	return !a.TokenExpiresAt.After(now.Add(leeway))
}

// ApplyToken replaces the token fields after a successful refresh.
// An empty refresh token keeps the current one.
func (a *Account) ApplyToken(accessToken, refreshToken string, expiresAt time.Time) {
	a.AccessToken = accessToken
	if refreshToken != "" {
		a.RefreshToken = refreshToken
	}
	a.TokenExpiresAt = &expiresAt
	a.Touch(time.Now())
}

// MarkSynced records a successful sync at the given time
func (a *Account) MarkSynced(at time.Time) {
	a.SyncStatus = AccountSyncStatusConnected
	a.LastSyncAt = &at
	a.LastSyncError = ""
	a.Touch(at)
}

// MarkErrored records a failed authorization. The account stays errored until
// a user reconnects it.
func (a *Account) MarkErrored(message string) {
	a.SyncStatus = AccountSyncStatusError
	a.LastSyncError = message
	a.Touch(time.Now())
}

// MarkSyncFailed records a non-auth failure; the connection state is kept.
func (a *Account) MarkSyncFailed(message string) {
	a.LastSyncError = message
	a.Touch(time.Now())
}
