package ecommerce

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// PlatformConfig holds the endpoints and paging limits of the external order API
type PlatformConfig struct {
	// TokenURL is the OAuth2 token endpoint used for refresh-token grants
	TokenURL string
	// BaseURL is the API base URL; OrdersPath is appended to it
	BaseURL string
	// OrdersPath is the order listing endpoint
	OrdersPath string
	// Timeout bounds every HTTP request
	Timeout time.Duration
	// PageSize is the number of orders requested per page
	PageSize int
	// MaxPages caps the pages fetched per account per cycle
	MaxPages int
	// PageDelay is waited between page requests
	PageDelay time.Duration
	// TokenLeeway refreshes tokens this long before they expire
	TokenLeeway time.Duration
	// DefaultTokenLifetime is assumed when a token response has no expires_in
	DefaultTokenLifetime time.Duration
}

const (
	// DefaultOrdersPath is the order listing endpoint when none is configured
	DefaultOrdersPath = "/orders"
	// DefaultPageSize is the default number of orders per page
	DefaultPageSize = 100
	// DefaultMaxPages is the default page ceiling per account per cycle
	DefaultMaxPages = 5
)

// Errors for platform configuration
var (
	ErrPlatformConfigMissingTokenURL = errors.New("ecommerce: token URL is required")
	ErrPlatformConfigMissingBaseURL  = errors.New("ecommerce: base URL is required")
	ErrPlatformConfigInvalidURL      = errors.New("ecommerce: invalid URL")
	ErrPlatformConfigInvalidPaging   = errors.New("ecommerce: page size and page ceiling must be positive")
	ErrPlatformConfigInvalidTimeout  = errors.New("ecommerce: timeout must be positive")
)

// NewPlatformConfig creates a configuration with defaults for everything but the URLs
func NewPlatformConfig(tokenURL, baseURL string) *PlatformConfig {
	return &PlatformConfig{
		TokenURL:             tokenURL,
		BaseURL:              baseURL,
		OrdersPath:           DefaultOrdersPath,
		Timeout:              30 * time.Second,
		PageSize:             DefaultPageSize,
		MaxPages:             DefaultMaxPages,
		PageDelay:            time.Second,
		TokenLeeway:          60 * time.Second,
		DefaultTokenLifetime: time.Hour,
	}
}

// Validate validates the platform configuration
func (c *PlatformConfig) Validate() error {
	if c.TokenURL == "" {
		return ErrPlatformConfigMissingTokenURL
	}
	if c.BaseURL == "" {
		return ErrPlatformConfigMissingBaseURL
	}
	for _, raw := range []string{c.TokenURL, c.BaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrPlatformConfigInvalidURL
		}
	}
	if c.OrdersPath == "" {
		c.OrdersPath = DefaultOrdersPath
	}
	if !strings.HasPrefix(c.OrdersPath, "/") {
		c.OrdersPath = "/" + c.OrdersPath
	}
	if c.PageSize <= 0 || c.MaxPages <= 0 {
		return ErrPlatformConfigInvalidPaging
	}
	if c.Timeout <= 0 {
		return ErrPlatformConfigInvalidTimeout
	}
	if c.PageDelay < 0 {
		c.PageDelay = 0
	}
	if c.TokenLeeway < 0 {
		c.TokenLeeway = 0
	}
	if c.DefaultTokenLifetime <= 0 {
		c.DefaultTokenLifetime = time.Hour
	}
	return nil
}
