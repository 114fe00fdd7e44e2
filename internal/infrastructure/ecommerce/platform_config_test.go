package ecommerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlatformConfig_Defaults(t *testing.T) {
	cfg := NewPlatformConfig("https://auth.example.com/token", "https://api.example.com")
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultOrdersPath, cfg.OrdersPath)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultMaxPages, cfg.MaxPages)
	assert.Equal(t, time.Second, cfg.PageDelay)
	assert.Equal(t, 60*time.Second, cfg.TokenLeeway)
	assert.Equal(t, time.Hour, cfg.DefaultTokenLifetime)
}

func TestPlatformConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *PlatformConfig)
		wantErr error
	}{
		{"missing token url", func(c *PlatformConfig) { c.TokenURL = "" }, ErrPlatformConfigMissingTokenURL},
		{"missing base url", func(c *PlatformConfig) { c.BaseURL = "" }, ErrPlatformConfigMissingBaseURL},
		{"relative base url", func(c *PlatformConfig) { c.BaseURL = "/api" }, ErrPlatformConfigInvalidURL},
		{"zero page size", func(c *PlatformConfig) { c.PageSize = 0 }, ErrPlatformConfigInvalidPaging},
		{"zero page ceiling", func(c *PlatformConfig) { c.MaxPages = 0 }, ErrPlatformConfigInvalidPaging},
		{"zero timeout", func(c *PlatformConfig) { c.Timeout = 0 }, ErrPlatformConfigInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewPlatformConfig("https://auth.example.com/token", "https://api.example.com")
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestPlatformConfig_ValidateNormalizes(t *testing.T) {
	cfg := NewPlatformConfig("https://auth.example.com/token", "https://api.example.com")
	cfg.OrdersPath = "v2/orders"
	cfg.PageDelay = -time.Second
	cfg.TokenLeeway = -time.Second
	cfg.DefaultTokenLifetime = 0

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "/v2/orders", cfg.OrdersPath)
	assert.Equal(t, time.Duration(0), cfg.PageDelay)
	assert.Equal(t, time.Duration(0), cfg.TokenLeeway)
	assert.Equal(t, time.Hour, cfg.DefaultTokenLifetime)
}
