// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Nested sections map to dotted koanf keys, e.g. redis.addr.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// SessionTTL is the idle time after which a session expires.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`

	// SessionStore picks the session backend: memory or redis.
	SessionStore string `koanf:"session_store" validate:"oneof=memory redis"`

	Redis     RedisConfig     `koanf:"redis"`
	Owner     model.Owner     `koanf:"owner"`
	Directory DirectoryConfig `koanf:"directory"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Matching  MatchingConfig  `koanf:"matching"`
	Notify    NotifyConfig    `koanf:"notify"`
	HTTP      HTTPConfig      `koanf:"http"`

	// PartnerFormURL is where /partners/register redirects. Empty disables it.
	PartnerFormURL string `koanf:"partner_form_url" validate:"omitempty,url"`
}

// RedisConfig locates the Redis session store.
type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// DirectoryConfig controls the partner sheet.
type DirectoryConfig struct {
	// SheetURL is a CSV export URL. Empty serves the built-in sample set.
	SheetURL     string        `koanf:"sheet_url" validate:"omitempty,url"`
	TTL          time.Duration `koanf:"ttl" validate:"gt=0"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
}

// CatalogConfig picks the project source. DatabaseURL wins over File; with
// neither the built-in sample catalog is used.
type CatalogConfig struct {
	File        string `koanf:"file"`
	DatabaseURL string `koanf:"database_url"`
}

// MatchingConfig tunes partner recommendations.
type MatchingConfig struct {
	LocalFirst      bool   `koanf:"local_first"`
	RegionSeparator string `koanf:"region_separator"`
}

// NotifyConfig sizes the notification pipeline.
type NotifyConfig struct {
	QueueSize int `koanf:"queue_size" validate:"gt=0"`
	Workers   int `koanf:"workers" validate:"gt=0,lte=64"`
}

// HTTPConfig holds transport middleware settings.
type HTTPConfig struct {
	// RateLimit is a per IP limit such as "300-M". Empty disables limiting.
	RateLimit   string `koanf:"rate_limit"`
	Development bool   `koanf:"development"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		SessionTTL:   30 * time.Minute,
		SessionStore: StoreMemory,
		Owner: model.Owner{
			Name:      "鈴木土木工業",
			Location:  "柏市",
			TradeType: "土木一式",
			Capacity:  30_000_000,
			Credit:    "A",
		},
		Directory: DirectoryConfig{
			TTL:          60 * time.Second,
			FetchTimeout: 5 * time.Second,
		},
		Matching: MatchingConfig{
			RegionSeparator: "・",
		},
		Notify: NotifyConfig{
			QueueSize: 1024,
			Workers:   2,
		},
		HTTP: HTTPConfig{
			RateLimit: "300-M",
		},
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.SessionStore == StoreRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when session_store is redis", ErrInvalidConfig)
	}
	return nil
}
