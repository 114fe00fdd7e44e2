package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/domain/integration"
)

// pageServer serves the order listing from a per-page handler
type pageServer struct {
	mu      sync.Mutex
	queries []map[string]string
	auth    []string
	handler func(w http.ResponseWriter, page int)
}

func (s *pageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	s.mu.Lock()
	s.queries = append(s.queries, map[string]string{
		"path":      r.URL.Path,
		"page":      r.URL.Query().Get("page"),
		"limit":     r.URL.Query().Get("limit"),
		"startDate": r.URL.Query().Get("startDate"),
	})
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()
	s.handler(w, page)
}

func (s *pageServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// ordersPage renders n well-formed orders with ids offset by page
func ordersPage(page, n int) string {
	elements := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := page*1000 + i
		elements = append(elements, fmt.Sprintf(
			`{"id":%d,"number":"%d","date":"2024-04-30","status":{"id":1},"contact":{"name":"C"},"total":"10.00","items":[{"code":"X","quantity":1}]}`,
			id, id,
		))
	}
	return `{"data":[` + strings.Join(elements, ",") + `]}`
}

func newTestOrderClient(t *testing.T, baseURL string, pageSize, maxPages int) (*OrderClient, *[]time.Duration) {
	t.Helper()
	cfg := NewPlatformConfig("https://auth.example.com/token", baseURL)
	cfg.PageSize = pageSize
	cfg.MaxPages = maxPages
	cfg.Timeout = 2 * time.Second

	var slept []time.Duration
	client, err := NewOrderClient(cfg, nil, WithPageSleeper(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}))
	require.NoError(t, err)
	return client, &slept
}

func testAccount(t *testing.T) *integration.Account {
	t.Helper()
	account, err := integration.NewAccount(uuid.New(), "client-id", "client-secret", "refresh")
	require.NoError(t, err)
	return account
}

var fetchSince = time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)

func TestOrderClient_StopsAtPageCeiling(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(ordersPage(page, 2)))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, slept := newTestOrderClient(t, server.URL, 2, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

	assert.True(t, result.Partial)
	assert.NoError(t, result.Err)
	assert.Equal(t, 5, result.Pages)
	assert.Len(t, result.Orders, 10)
	assert.Equal(t, 5, srv.requests())
	assert.Len(t, *slept, 4)
	for _, d := range *slept {
		assert.Equal(t, time.Second, d)
	}
}

func TestOrderClient_ShortPageEndsPagination(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		if page == 1 {
			_, _ = w.Write([]byte(ordersPage(page, 3)))
			return
		}
		_, _ = w.Write([]byte(ordersPage(page, 1)))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, _ := newTestOrderClient(t, server.URL, 3, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

	assert.False(t, result.Partial)
	assert.NoError(t, result.Err)
	assert.Equal(t, 2, result.Pages)
	assert.Len(t, result.Orders, 4)
	assert.Equal(t, 2, srv.requests())
}

func TestOrderClient_EmptyFirstPage(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, slept := newTestOrderClient(t, server.URL, 100, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

	assert.False(t, result.Partial)
	assert.Equal(t, 1, result.Pages)
	assert.Empty(t, result.Orders)
	assert.Empty(t, *slept)
}

func TestOrderClient_SendsQueryAndBearerToken(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, _ := newTestOrderClient(t, server.URL, 100, 5)
	client.FetchRecent(context.Background(), testAccount(t), "new-access", fetchSince)

	require.Len(t, srv.queries, 1)
	assert.Equal(t, "/orders", srv.queries[0]["path"])
	assert.Equal(t, "1", srv.queries[0]["page"])
	assert.Equal(t, "100", srv.queries[0]["limit"])
	assert.Equal(t, "2024-04-30", srv.queries[0]["startDate"])
	assert.Equal(t, "Bearer new-access", srv.auth[0])
}

func TestOrderClient_PageFailureKeepsEarlierPages(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		if page == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(ordersPage(page, 2)))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, _ := newTestOrderClient(t, server.URL, 2, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

	assert.True(t, result.Partial)
	require.Error(t, result.Err)
	assert.True(t, integration.IsTransient(result.Err))
	assert.Equal(t, 1, result.Pages)
	assert.Len(t, result.Orders, 2)
	assert.Equal(t, 2, srv.requests())
}

func TestOrderClient_RejectedTokenIsAuthError(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		w.WriteHeader(http.StatusUnauthorized)
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, _ := newTestOrderClient(t, server.URL, 100, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "stale", fetchSince)

	assert.True(t, result.Partial)
	assert.True(t, integration.IsAuthError(result.Err))
	assert.Equal(t, 0, result.Pages)
	assert.Empty(t, result.Orders)
}

func TestOrderClient_MalformedEnvelope(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `<html>maintenance</html>`,
		"missing data": `{"orders":[]}`,
		"data object":  `{"data":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
				_, _ = w.Write([]byte(body))
			}}
			server := httptest.NewServer(srv)
			defer server.Close()

			client, _ := newTestOrderClient(t, server.URL, 100, 5)
			result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

			assert.True(t, result.Partial)
			assert.True(t, errors.Is(result.Err, integration.ErrMalformedPayload))
			assert.True(t, integration.IsTransient(result.Err))
		})
	}
}

func TestOrderClient_MalformedElementsAreTaggedNotDropped(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","number":"1","items":[]},
			{"id":"2","number":"2","items":[{"code":"X","quantity":0}]},
			{"number":"3"}
		]}`))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	client, _ := newTestOrderClient(t, server.URL, 100, 5)
	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)

	require.Len(t, result.Orders, 3)
	assert.True(t, result.Orders[0].OK())
	assert.False(t, result.Orders[1].OK())
	assert.Equal(t, "2", result.Orders[1].Order.ExternalID)
	assert.False(t, result.Orders[2].OK())
	assert.False(t, result.Partial)
}

func TestOrderClient_CanceledWaitBetweenPages(t *testing.T) {
	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(ordersPage(page, 1)))
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	cfg := NewPlatformConfig("https://auth.example.com/token", server.URL)
	cfg.PageSize = 1
	client, err := NewOrderClient(cfg, nil, WithPageSleeper(func(context.Context, time.Duration) error {
		return context.Canceled
	}))
	require.NoError(t, err)

	result := client.FetchRecent(context.Background(), testAccount(t), "tok", fetchSince)
	assert.True(t, result.Partial)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, result.Pages)
	assert.Len(t, result.Orders, 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

// Expired token is refreshed once and the new token is used for the listing.
func TestTokenManagerAndOrderClient_RefreshThenFetch(t *testing.T) {
	var tokenCalls int
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "refresh-2",
			"expires_in":    3600,
		})
	}))
	defer tokenServer.Close()

	srv := &pageServer{handler: func(w http.ResponseWriter, page int) {
		_, _ = w.Write([]byte(ordersPage(page, 1)))
	}}
	apiServer := httptest.NewServer(srv)
	defer apiServer.Close()

	store := &recordingTokenStore{}
	manager := newTestTokenManager(t, tokenServer.URL, store)
	client, _ := newTestOrderClient(t, apiServer.URL, 100, 5)
	account := newExpiredAccount(t)

	token, err := manager.EnsureValidToken(context.Background(), account)
	require.NoError(t, err)
	result := client.FetchRecent(context.Background(), account, token, fetchSince)

	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, "new-access", store.access)
	assert.Equal(t, "refresh-2", store.refresh)
	require.Len(t, srv.auth, 1)
	assert.Equal(t, "Bearer new-access", srv.auth[0])
	assert.Len(t, result.Orders, 1)
}
