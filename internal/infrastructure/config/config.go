package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all client configuration.
type Config struct {
	API       APIConfig
	Auth      AuthConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Stream    StreamConfig
	Logging   LogConfig
	Metrics   MetricsConfig
	Locale    string `envconfig:"PREMISES_LOCALE"`
}

// APIConfig holds control panel connection settings.
type APIConfig struct {
	BaseURL   string        `envconfig:"PREMISES_URL"`
	Timeout   time.Duration `envconfig:"PREMISES_TIMEOUT"`
	UserAgent string        `envconfig:"PREMISES_USER_AGENT"`
}

// AuthConfig holds credentials for non-interactive login.
type AuthConfig struct {
	UserName string `envconfig:"PREMISES_USER"`
	Password string `envconfig:"PREMISES_PASSWORD"`
}

// RetryConfig holds retry policy for idempotent REST calls.
type RetryConfig struct {
	Max     int           `envconfig:"PREMISES_RETRY_MAX"`
	MinWait time.Duration `envconfig:"PREMISES_RETRY_MIN_WAIT"`
	MaxWait time.Duration `envconfig:"PREMISES_RETRY_MAX_WAIT"`
}

// RateLimitConfig holds client-side request rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"PREMISES_RATE_LIMIT_RPS"`
	Burst             int     `envconfig:"PREMISES_RATE_LIMIT_BURST"`
	Enabled           bool    `envconfig:"PREMISES_RATE_LIMIT_ENABLED"`
}

// BreakerConfig holds circuit breaker thresholds for the API client.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `envconfig:"PREMISES_BREAKER_FAILURES"`
	OpenTimeout         time.Duration `envconfig:"PREMISES_BREAKER_TIMEOUT"`
}

// StreamConfig holds event stream settings.
type StreamConfig struct {
	RetryInitial  time.Duration `envconfig:"PREMISES_STREAM_RETRY"`
	RetryMax      time.Duration `envconfig:"PREMISES_STREAM_RETRY_MAX"`
	CPUBufferSize int           `envconfig:"PREMISES_CPU_BUFFER"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"PREMISES_LOG_LEVEL"`
	Development bool   `envconfig:"PREMISES_LOG_DEV"`
}

// MetricsConfig holds the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `envconfig:"PREMISES_METRICS_ADDR"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   30 * time.Second,
			UserAgent: "premises-gamectl/1.0",
		},
		Retry: RetryConfig{
			Max:     3,
			MinWait: 500 * time.Millisecond,
			MaxWait: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Stream: StreamConfig{
			RetryInitial:  3 * time.Second,
			RetryMax:      30 * time.Second,
			CPUBufferSize: 100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Locale: "en",
	}
}

// Load loads configuration from environment variables on top of defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile layers defaults, then the TOML profile at path (skipped when
// path is empty or the file does not exist), then environment variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read profile: %w", err)
		default:
			if err := applyProfile(cfg, data); err != nil {
				return nil, err
			}
		}
	}

	// No default tags: unset variables leave the layered value untouched.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: control panel URL is empty")
	}
	if c.Stream.CPUBufferSize <= 0 {
		return fmt.Errorf("config: cpu buffer size must be positive, got %d", c.Stream.CPUBufferSize)
	}
	if c.Stream.RetryMax < c.Stream.RetryInitial {
		return fmt.Errorf("config: stream retry max %s is below initial %s", c.Stream.RetryMax, c.Stream.RetryInitial)
	}
	return nil
}

// profile mirrors the subset of Config settable from a TOML file.
type profile struct {
	URL    *string `toml:"url"`
	User   *string `toml:"user"`
	Locale *string `toml:"locale"`
	Log    struct {
		Level       *string `toml:"level"`
		Development *bool   `toml:"development"`
	} `toml:"log"`
	Stream struct {
		Retry     *string `toml:"retry"`
		RetryMax  *string `toml:"retry_max"`
		CPUBuffer *int    `toml:"cpu_buffer"`
	} `toml:"stream"`
	Metrics struct {
		Addr *string `toml:"addr"`
	} `toml:"metrics"`
}

func applyProfile(cfg *Config, data []byte) error {
	var p profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}

	if p.URL != nil {
		cfg.API.BaseURL = *p.URL
	}
	if p.User != nil {
		cfg.Auth.UserName = *p.User
	}
	if p.Locale != nil {
		cfg.Locale = *p.Locale
	}
	if p.Log.Level != nil {
		cfg.Logging.Level = *p.Log.Level
	}
	if p.Log.Development != nil {
		cfg.Logging.Development = *p.Log.Development
	}
	if p.Metrics.Addr != nil {
		cfg.Metrics.Addr = *p.Metrics.Addr
	}
	if p.Stream.CPUBuffer != nil {
		cfg.Stream.CPUBufferSize = *p.Stream.CPUBuffer
	}
	if p.Stream.Retry != nil {
		d, err := time.ParseDuration(*p.Stream.Retry)
		if err != nil {
			return fmt.Errorf("profile stream.retry: %w", err)
		}
		cfg.Stream.RetryInitial = d
	}
	if p.Stream.RetryMax != nil {
		d, err := time.ParseDuration(*p.Stream.RetryMax)
		if err != nil {
			return fmt.Errorf("profile stream.retry_max: %w", err)
		}
		cfg.Stream.RetryMax = d
	}
	return nil
}
