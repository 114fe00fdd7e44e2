package integration

import (
	"context"
	"time"
)

// TokenProvider yields a valid access token for an account, refreshing it
// through the external token endpoint when needed.
type TokenProvider interface {
	// EnsureValidToken returns a usable access token. On refresh the account
	// and its stored tokens are updated. Failures are *AuthError or *TransientError.
	EnsureValidToken(ctx context.Context, account *Account) (string, error)
}

// OrderFetcher retrieves recently changed orders for one account.
type OrderFetcher interface {
	// FetchRecent pages through orders changed since the given date.
	// Page failures do not return an error: they end pagination and are
	// reported through FetchResult.Partial and FetchResult.Err.
	FetchRecent(ctx context.Context, account *Account, token string, since time.Time) FetchResult
}
