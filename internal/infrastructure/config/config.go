// Package config loads sync engine settings from config.toml and ERP_*
// environment variables, in that order of increasing priority, on top of
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "ERP"

// Config is the full sync engine configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"required"`
}

// DatabaseConfig is the PostgreSQL connection and pool
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"min=0"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error fatal"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// RedisConfig is the connection behind the cross-instance cycle lock
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port" validate:"min=1,max=65535"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	LockKey  string        `mapstructure:"lock_key" validate:"required"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	ServiceName       string        `mapstructure:"service_name" validate:"required"`
	Insecure          bool          `mapstructure:"insecure"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio" validate:"gte=0,lte=1"`
	ExportInterval    time.Duration `mapstructure:"export_interval" validate:"gt=0"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilerAddress   string        `mapstructure:"profiler_address"`
}

// PlatformConfig is the external order platform: endpoints and paging limits
type PlatformConfig struct {
	TokenURL             string        `mapstructure:"token_url" validate:"required,url"`
	BaseURL              string        `mapstructure:"base_url" validate:"required,url"`
	OrdersPath           string        `mapstructure:"orders_path" validate:"required,startswith=/"`
	Timeout              time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PageSize             int           `mapstructure:"page_size" validate:"min=1,max=500"`
	MaxPages             int           `mapstructure:"max_pages" validate:"min=1"`
	PageDelay            time.Duration `mapstructure:"page_delay" validate:"min=0"`
	TokenLeeway          time.Duration `mapstructure:"token_leeway" validate:"min=0"`
	DefaultTokenLifetime time.Duration `mapstructure:"default_token_lifetime" validate:"gt=0"`
}

// SyncConfig drives the scheduler
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval" validate:"gt=0"`
	StartupDelay     time.Duration `mapstructure:"startup_delay" validate:"min=0"`
	AccountDelay     time.Duration `mapstructure:"account_delay" validate:"min=0"`
	LookbackWindow   time.Duration `mapstructure:"lookback_window" validate:"gt=0"`
	AutoDeductStatus string        `mapstructure:"auto_deduct_status" validate:"required"`
	// CycleTimeout of 0 leaves cycles unbounded
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" validate:"min=0"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" validate:"gt=0"`
}

// defaults registers every key, which is also what lets AutomaticEnv
// reach keys absent from config.toml.
var defaults = map[string]any{
	"app.name": "erp-ordersync",
	"app.env":  "development",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "erp",
	"database.sslmode":            "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,
	"database.slow_threshold":     200 * time.Millisecond,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.lock_key": "ordersync:cycle",
	"redis.lock_ttl": 30 * time.Minute,

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.service_name":       "erp-ordersync",
	"telemetry.insecure":           false,
	"telemetry.sampling_ratio":     1.0,
	"telemetry.export_interval":    time.Minute,
	"telemetry.db_trace_enabled":   false,
	"telemetry.logs_enabled":       false,
	"telemetry.profiling_enabled":  false,
	"telemetry.profiler_address":   "http://localhost:4040",

	"platform.token_url":              "",
	"platform.base_url":               "",
	"platform.orders_path":            "/orders",
	"platform.timeout":                30 * time.Second,
	"platform.page_size":              100,
	"platform.max_pages":              5,
	"platform.page_delay":             time.Second,
	"platform.token_leeway":           time.Minute,
	"platform.default_token_lifetime": time.Hour,

	"sync.enabled":            true,
	"sync.interval":           10 * time.Minute,
	"sync.startup_delay":      10 * time.Second,
	"sync.account_delay":      2 * time.Second,
	"sync.lookback_window":    24 * time.Hour,
	"sync.auto_deduct_status": "Verified",
	"sync.cycle_timeout":      time.Duration(0),
	"sync.stop_timeout":       30 * time.Second,
}

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads and validates the whole configuration
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the configuration and validates only the database
// section, so the migration CLI runs without platform settings.
func LoadDatabase() (*DatabaseConfig, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := checkStruct(&cfg.Database); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	return &cfg.Database, nil
}

func read() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := checkStruct(c); err != nil {
		return err
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	// The lock must outlive the longest cycle it guards
	if c.Redis.Enabled && c.Sync.CycleTimeout > 0 && c.Redis.LockTTL < c.Sync.CycleTimeout {
		return fmt.Errorf("redis.lock_ttl (%s) must cover sync.cycle_timeout (%s)", c.Redis.LockTTL, c.Sync.CycleTimeout)
	}

	if c.App.Env == "production" {
		switch {
		case c.Database.Password == "":
			return errors.New("database.password is required in production")
		case c.Database.SSLMode == "disable":
			return errors.New("database.sslmode cannot be 'disable' in production")
		case strings.HasPrefix(c.Platform.TokenURL, "http://"):
			return errors.New("platform.token_url must use https in production")
		}
	}
	return nil
}

// checkStruct validates s and phrases the first failure with its config key
func checkStruct(s any) error {
	err := validate.Struct(s)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("%s failed %q validation (value %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value())
}

// configKey drops the root type from a validator namespace:
// "Config.platform.token_url" becomes "platform.token_url".
func configKey(namespace string) string {
	_, key, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return key
}

// DSN returns a postgres URL with user, password and database escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Addr(),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr is the database host:port
func (d *DatabaseConfig) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Addr is the Redis host:port
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
