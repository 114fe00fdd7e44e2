package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// sinceDateLayout is the startDate filter format of the order listing
const sinceDateLayout = "2006-01-02"

// OrderClient lists recent orders page by page
type OrderClient struct {
	config *PlatformConfig
	client *resty.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// OrderClientOption configures an OrderClient
type OrderClientOption func(*OrderClient)

// WithPageSleeper overrides how the client waits between pages
func WithPageSleeper(sleep func(ctx context.Context, d time.Duration) error) OrderClientOption {
	return func(c *OrderClient) {
		c.sleep = sleep
	}
}

// NewOrderClient creates an OrderClient
func NewOrderClient(config *PlatformConfig, logger *zap.Logger, opts ...OrderClientOption) (*OrderClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &OrderClient{
		config: config,
		client: resty.New().
			SetBaseURL(config.BaseURL).
			SetTimeout(config.Timeout).
			SetHeader("Accept", "application/json"),
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchRecent fetches orders changed since the given date.
// Pagination stops on a short page. Reaching the page ceiling, or a page
// failure after which earlier pages are still returned, sets Partial.
func (c *OrderClient) FetchRecent(ctx context.Context, account *integration.Account, token string, since time.Time) integration.FetchResult {
	var result integration.FetchResult
	startDate := since.Format(sinceDateLayout)

	for page := 1; page <= c.config.MaxPages; page++ {
		if page > 1 {
			if err := c.sleep(ctx, c.config.PageDelay); err != nil {
				result.Partial = true
				result.Err = integration.NewTransientError(account.ID, "wait between pages", err)
				return result
			}
		}

		orders, size, err := c.fetchPage(ctx, account, token, startDate, page)
		if err != nil {
			c.logger.Warn("Order page request failed, keeping earlier pages",
				zap.String("account_id", account.ID.String()),
				zap.Int("page", page),
				zap.Int("orders_kept", len(result.Orders)),
				zap.Error(err),
			)
			result.Partial = true
			result.Err = err
			return result
		}

		result.Pages++
		result.Orders = append(result.Orders, orders...)

		if size < c.config.PageSize {
			return result
		}
	}

	result.Partial = true
	c.logger.Info("Page ceiling reached, remaining orders wait for the next cycle",
		zap.String("account_id", account.ID.String()),
		zap.Int("pages", result.Pages),
		zap.Int("orders", len(result.Orders)),
	)
	return result
}

// fetchPage requests one page and decodes its elements. size is the number of
// elements on the page, malformed ones included.
func (c *OrderClient) fetchPage(
	ctx context.Context,
	account *integration.Account,
	token string,
	startDate string,
	page int,
) ([]integration.ParsedOrder, int, error) {
	op := fmt.Sprintf("fetch orders page %d", page)

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"page":      strconv.Itoa(page),
			"limit":     strconv.Itoa(c.config.PageSize),
			"startDate": startDate,
		}).
		Get(c.config.OrdersPath)
	if err != nil {
		return nil, 0, integration.NewTransientError(account.ID, op, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, 0, integration.NewAuthError(account.ID, code, "order listing rejected the access token", nil)
	case !resp.IsSuccess():
		return nil, 0, integration.NewTransientError(account.ID, op, fmt.Errorf("unexpected status %d", code))
	}

	elements, err := decodeEnvelope(resp.Body())
	if err != nil {
		return nil, 0, integration.NewTransientError(account.ID, op, err)
	}

	orders := make([]integration.ParsedOrder, 0, len(elements))
	for _, raw := range elements {
		parsed := decodeOrder(raw)
		if !parsed.OK() {
			c.logger.Warn("Malformed order element",
				zap.String("account_id", account.ID.String()),
				zap.Int("page", page),
				zap.String("external_order_id", parsed.Order.ExternalID),
				zap.Error(parsed.Err),
			)
		}
		orders = append(orders, parsed)
	}
	return orders, len(elements), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure OrderClient implements OrderFetcher
var _ integration.OrderFetcher = (*OrderClient)(nil)
