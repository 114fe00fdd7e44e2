package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/erp/ordersync/internal/domain/integration"
)

// TokenStore persists refreshed tokens. integration.AccountRepository satisfies it.
type TokenStore interface {
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenManager keeps account access tokens valid using the OAuth2 refresh-token grant.
// It never retries; a failed refresh is reported and retried by the next cycle.
type TokenManager struct {
	config     *PlatformConfig
	store      TokenStore
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithTokenClock overrides the clock used for expiry checks
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// WithTokenHTTPClient overrides the HTTP client used for token requests
func WithTokenHTTPClient(client *http.Client) TokenManagerOption {
	return func(m *TokenManager) {
		m.httpClient = client
	}
}

// NewTokenManager creates a TokenManager
func NewTokenManager(config *PlatformConfig, store TokenStore, logger *zap.Logger, opts ...TokenManagerOption) (*TokenManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &TokenManager{
		config:     config,
		store:      store,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// EnsureValidToken returns the account's access token, refreshing it first
// when it is missing or expires within the configured leeway.
func (m *TokenManager) EnsureValidToken(ctx context.Context, account *integration.Account) (string, error) {
	if !account.TokenExpired(m.now(), m.config.TokenLeeway) {
		return account.AccessToken, nil
	}
	return m.Refresh(ctx, account)
}

// Refresh performs one refresh-token grant and persists the result.
// Stored tokens are left untouched on failure.
func (m *TokenManager) Refresh(ctx context.Context, account *integration.Account) (string, error) {
	if !account.HasCredentials() {
		return "", integration.NewAuthError(account.ID, 0, "missing client credentials or refresh token", integration.ErrMissingCredentials)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	requestedAt := m.now()
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, m.basicAuthClient(account))
	token, err := oauthConfig.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		classified := m.classifyError(account, err)
		m.logger.Warn("Token refresh failed",
			zap.String("account_id", account.ID.String()),
			zap.Bool("auth_error", integration.IsAuthError(classified)),
			zap.Error(err),
		)
		return "", classified
	}

	expiresAt := m.expiryOf(token, requestedAt)
	rotated := token.RefreshToken != "" && token.RefreshToken != account.RefreshToken
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = account.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, account.ID, token.AccessToken, refreshToken, expiresAt); err != nil {
		return "", integration.NewTransientError(account.ID, "persist refreshed tokens", err)
	}
	account.ApplyToken(token.AccessToken, refreshToken, expiresAt)

	m.logger.Info("Access token refreshed",
		zap.String("account_id", account.ID.String()),
		zap.Time("expires_at", expiresAt),
		zap.Bool("refresh_token_rotated", rotated),
	)

	return token.AccessToken, nil
}

// basicAuthClient wraps the token HTTP client so the Authorization header is
// base64(clientID:clientSecret) over the raw, unescaped credentials.
func (m *TokenManager) basicAuthClient(account *integration.Account) *http.Client {
	client := *m.httpClient
	client.Transport = &basicAuthTransport{
		base:     m.httpClient.Transport,
		username: account.ClientID,
		password: account.ClientSecret,
	}
	return &client
}

type basicAuthTransport struct {
	base               http.RoundTripper
	username, password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return base.RoundTrip(req)
}

// expiryOf computes the token expiry from expires_in against our clock
func (m *TokenManager) expiryOf(token *oauth2.Token, requestedAt time.Time) time.Time {
	if token.ExpiresIn > 0 {
		return requestedAt.Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	if !token.Expiry.IsZero() {
		return token.Expiry
	}
	return requestedAt.Add(m.config.DefaultTokenLifetime)
}

// classifyError maps a refresh failure to an auth or transient error.
// Only an explicit 400/401/403 from the token endpoint is an auth failure.
func (m *TokenManager) classifyError(account *integration.Account, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		switch code := retrieveErr.Response.StatusCode; code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			reason := retrieveErr.ErrorCode
			if reason == "" {
				reason = fmt.Sprintf("token endpoint returned %d", code)
			}
			return integration.NewAuthError(account.ID, code, reason, err)
		}
	}
	return integration.NewTransientError(account.ID, "refresh token", err)
}

// Ensure TokenManager implements TokenProvider
var _ integration.TokenProvider = (*TokenManager)(nil)
