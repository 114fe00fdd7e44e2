package ecommerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/domain/integration"
)

// recordingTokenStore records UpdateTokens calls
type recordingTokenStore struct {
	mu        sync.Mutex
	calls     int
	access    string
	refresh   string
	expiresAt time.Time
	err       error
}

func (s *recordingTokenStore) UpdateTokens(_ context.Context, _ uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.access = accessToken
	s.refresh = refreshToken
	s.expiresAt = expiresAt
	return nil
}

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newExpiredAccount(t *testing.T) *integration.Account {
	t.Helper()
	account, err := integration.NewAccount(uuid.New(), "client-id", "client-secret", "refresh-1")
	require.NoError(t, err)
	expired := testNow.Add(-time.Minute)
	account.AccessToken = "old-access"
	account.TokenExpiresAt = &expired
	return account
}

func newTestTokenManager(t *testing.T, tokenURL string, store TokenStore) *TokenManager {
	t.Helper()
	cfg := NewPlatformConfig(tokenURL, "https://api.example.com")
	cfg.Timeout = 2 * time.Second
	m, err := NewTokenManager(cfg, store, nil, WithTokenClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return m
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestTokenManager_RefreshesExpiredToken(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	store := &recordingTokenStore{}
	manager := newTestTokenManager(t, server.URL, store)
	account := newExpiredAccount(t)

	token, err := manager.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, int32(1), requests.Load())

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "new-access", store.access)
	assert.Equal(t, "refresh-2", store.refresh)
	assert.True(t, testNow.Add(time.Hour).Equal(store.expiresAt))

	assert.Equal(t, "new-access", account.AccessToken)
	assert.Equal(t, "refresh-2", account.RefreshToken)
	require.NotNil(t, account.TokenExpiresAt)
	assert.True(t, testNow.Add(time.Hour).Equal(*account.TokenExpiresAt))

	// a second call inside the validity window does not hit the endpoint
	token, err = manager.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, int32(1), requests.Load())
}

func TestTokenManager_BasicAuthUsesRawCredentials(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostForm.Get("client_secret"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "new-access", "expires_in": 3600})
	}))
	defer server.Close()

	account := newExpiredAccount(t)
	account.ClientID = "id:with+chars"
	account.ClientSecret = "s3cr+t/="

	m := newTestTokenManager(t, server.URL, &recordingTokenStore{})
	token, err := m.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:with+chars:s3cr+t/="))
	assert.Equal(t, want, header)
}

func TestTokenManager_ValidTokenSkipsRefresh(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := &recordingTokenStore{}
	manager := newTestTokenManager(t, server.URL, store)
	account := newExpiredAccount(t)
	validUntil := testNow.Add(10 * time.Minute)
	account.TokenExpiresAt = &validUntil

	token, err := manager.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "old-access", token)
	assert.Equal(t, int32(0), requests.Load())
	assert.Equal(t, 0, store.calls)
}

func TestTokenManager_RefreshesInsideLeeway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "fresh", "token_type": "Bearer"})
	}))
	defer server.Close()

	store := &recordingTokenStore{}
	manager := newTestTokenManager(t, server.URL, store)
	account := newExpiredAccount(t)
	almost := testNow.Add(30 * time.Second)
	account.TokenExpiresAt = &almost

	token, err := manager.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	// no refresh_token in the response keeps the stored one
	assert.Equal(t, "refresh-1", store.refresh)
	// no expires_in falls back to the default lifetime
	assert.True(t, testNow.Add(time.Hour).Equal(store.expiresAt))
}

func TestTokenManager_RejectedRefreshIsAuthError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, map[string]any{"error": "invalid_grant"})
			}))
			defer server.Close()

			store := &recordingTokenStore{}
			manager := newTestTokenManager(t, server.URL, store)
			account := newExpiredAccount(t)

			_, err := manager.EnsureValidToken(context.Background(), account)
			require.Error(t, err)
			assert.True(t, integration.IsAuthError(err))
			assert.False(t, integration.IsTransient(err))

			var authErr *integration.AuthError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, status, authErr.StatusCode)
			assert.Equal(t, "invalid_grant", authErr.Reason)

			assert.Equal(t, 0, store.calls)
			assert.Equal(t, "old-access", account.AccessToken)
			assert.Equal(t, "refresh-1", account.RefreshToken)
		})
	}
}

func TestTokenManager_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := &recordingTokenStore{}
	manager := newTestTokenManager(t, server.URL, store)

	_, err := manager.EnsureValidToken(context.Background(), newExpiredAccount(t))
	require.Error(t, err)
	assert.True(t, integration.IsTransient(err))
	assert.False(t, integration.IsAuthError(err))
	assert.Equal(t, 0, store.calls)
}

func TestTokenManager_NetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	manager := newTestTokenManager(t, url, &recordingTokenStore{})

	_, err := manager.EnsureValidToken(context.Background(), newExpiredAccount(t))
	require.Error(t, err)
	assert.True(t, integration.IsTransient(err))
}

func TestTokenManager_MissingRefreshTokenFailsWithoutRequest(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	manager := newTestTokenManager(t, server.URL, &recordingTokenStore{})
	account := newExpiredAccount(t)
	account.RefreshToken = ""

	_, err := manager.EnsureValidToken(context.Background(), account)
	assert.True(t, integration.IsAuthError(err))
	assert.ErrorIs(t, err, integration.ErrMissingCredentials)
	assert.Equal(t, int32(0), requests.Load())
}

func TestTokenManager_PersistFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "new-access", "expires_in": 60})
	}))
	defer server.Close()

	store := &recordingTokenStore{err: errors.New("connection reset")}
	manager := newTestTokenManager(t, server.URL, store)
	account := newExpiredAccount(t)

	_, err := manager.EnsureValidToken(context.Background(), account)
	assert.True(t, integration.IsTransient(err))
	assert.Equal(t, "old-access", account.AccessToken)
}
