package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mandi-price-api/internal/models"
)

// Config is read once at startup and passed down explicitly.
type Config struct {
	Fetch   FetchConfig
	Server  ServerConfig
	Cache   CacheConfig
	Sources SourcesConfig
	Log     LogConfig
}

// FetchConfig drives the price orchestrator.
type FetchConfig struct {
	DevMode         bool
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	DefaultSource   string
	UseMockFallback bool
}

type ServerConfig struct {
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int
}

type CacheConfig struct {
	Enabled bool
	URL     string
	DB      int
	TTL     time.Duration
}

type SourcesConfig struct {
	AgmarknetURL        string
	EnamURL             string
	AgmarknetUseBrowser bool
	ChromePath          string
}

type LogConfig struct {
	Level string
}

const (
	DefaultAgmarknetURL = "https://agmarknet.gov.in"
	DefaultEnamURL      = "https://enam.gov.in"
)

// Load reads configuration from the environment (and a .env file in the working
// directory, if any) on top of the defaults below.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("CROP_PRICE_DEV_MODE", "0")
	v.SetDefault("CROP_PRICE_TIMEOUT", 30)
	v.SetDefault("CROP_PRICE_MAX_RETRIES", 3)
	v.SetDefault("CROP_PRICE_RETRY_DELAY", 2)
	v.SetDefault("CROP_PRICE_DEFAULT_SOURCE", models.SourceAgmarknet)
	v.SetDefault("CROP_PRICE_USE_MOCK_FALLBACK", "1")

	v.SetDefault("PORT", "8085")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("CACHE_ENABLED", "1")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 600)

	v.SetDefault("AGMARKNET_URL", DefaultAgmarknetURL)
	v.SetDefault("ENAM_URL", DefaultEnamURL)
	v.SetDefault("AGMARKNET_USE_BROWSER", "0")
	v.SetDefault("CHROME_PATH", "")

	v.SetDefault("LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		// Missing .env is fine, the environment alone is enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	cfg := &Config{
		Fetch: FetchConfig{
			DevMode:         flag(v.GetString("CROP_PRICE_DEV_MODE")),
			RequestTimeout:  time.Duration(v.GetInt("CROP_PRICE_TIMEOUT")) * time.Second,
			MaxRetries:      v.GetInt("CROP_PRICE_MAX_RETRIES"),
			RetryDelay:      time.Duration(v.GetInt("CROP_PRICE_RETRY_DELAY")) * time.Second,
			DefaultSource:   strings.ToLower(strings.TrimSpace(v.GetString("CROP_PRICE_DEFAULT_SOURCE"))),
			UseMockFallback: flag(v.GetString("CROP_PRICE_USE_MOCK_FALLBACK")),
		},
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Cache: CacheConfig{
			Enabled: flag(v.GetString("CACHE_ENABLED")),
			URL:     v.GetString("REDIS_URL"),
			DB:      v.GetInt("REDIS_DB"),
			TTL:     time.Duration(v.GetInt("CACHE_TTL")) * time.Second,
		},
		Sources: SourcesConfig{
			AgmarknetURL:        strings.TrimRight(v.GetString("AGMARKNET_URL"), "/"),
			EnamURL:             strings.TrimRight(v.GetString("ENAM_URL"), "/"),
			AgmarknetUseBrowser: flag(v.GetString("AGMARKNET_USE_BROWSER")),
			ChromePath:          v.GetString("CHROME_PATH"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("CROP_PRICE_MAX_RETRIES must be at least 1, got %d", c.Fetch.MaxRetries)
	}
	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("CROP_PRICE_RETRY_DELAY cannot be negative")
	}
	if c.Fetch.RequestTimeout <= 0 {
		return fmt.Errorf("CROP_PRICE_TIMEOUT must be positive")
	}
	if !IsKnownSource(c.Fetch.DefaultSource) {
		return fmt.Errorf("CROP_PRICE_DEFAULT_SOURCE must be %q or %q, got %q",
			models.SourceAgmarknet, models.SourceEnam, c.Fetch.DefaultSource)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// Summary mirrors the fetch settings for diagnostics endpoints and the CLI.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"dev_mode":                  c.Fetch.DevMode,
		"request_timeout":           int(c.Fetch.RequestTimeout.Seconds()),
		"max_retries":               c.Fetch.MaxRetries,
		"retry_delay":               int(c.Fetch.RetryDelay.Seconds()),
		"default_data_source":       c.Fetch.DefaultSource,
		"default_use_mock_fallback": c.Fetch.UseMockFallback,
	}
}

func IsKnownSource(name string) bool {
	return name == models.SourceAgmarknet || name == models.SourceEnam
}

func flag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
