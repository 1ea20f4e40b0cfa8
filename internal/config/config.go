// Package config loads settings for the socs-calendar command.
//
// Sources, later ones winning: built-in defaults, an optional YAML file, a
// .env file in the working directory (if present), and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/client"
	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/Sternrassler/socs-calendar-client/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read before environment overrides are applied.
const DefaultEnvFile = ".env"

// Config is the top-level application configuration.
type Config struct {
	// Endpoint is the SOCS calendar URL including school ID and API key.
	Endpoint string `yaml:"endpoint"`

	// UserAgent is sent with every SOCS request.
	UserAgent string `yaml:"user_agent"`

	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen"`

	// RedisURL is either host:port or a redis:// URL. Empty disables the
	// result store.
	RedisURL string `yaml:"redis_url"`

	// CacheTTL is how long stored results stay fresh.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	Log   LogConfig   `yaml:"log"`
	Fetch FetchConfig `yaml:"fetch"`

	// Refresh is a standard 5-field cron spec (e.g. "*/30 * * * *") for
	// warming the store. Empty disables scheduled refreshes.
	Refresh string `yaml:"refresh"`

	// HorizonDays is the number of days, starting today, that a scheduled
	// refresh fetches.
	HorizonDays int `yaml:"horizon_days"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// FetchConfig controls how SOCS is queried.
type FetchConfig struct {
	TruncationCap  int                   `yaml:"truncation_cap"`
	MaxConcurrency int                   `yaml:"max_concurrency"`
	RateLimit      float64               `yaml:"rate_limit"`
	Dedupe         string                `yaml:"dedupe"`
	RequestTimeout time.Duration         `yaml:"request_timeout"`
	RetryAttempts  int                   `yaml:"retry_attempts"`
	Flags          client.InclusionFlags `yaml:"flags"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:   "socs-calendar-client/0.1.0",
		Listen:      "127.0.0.1:8080",
		CacheTTL:    15 * time.Minute,
		Log:         LogConfig{Level: string(logging.LevelInfo)},
		Refresh:     "",
		HorizonDays: 60,
		Fetch: FetchConfig{
			TruncationCap:  pagination.DefaultTruncationCap,
			MaxConcurrency: pagination.DefaultMaxConcurrency,
			RateLimit:      5,
			Dedupe:         string(calendar.KeepFirst),
			RequestTimeout: 30 * time.Second,
			RetryAttempts:  1,
			Flags:          client.DefaultInclusionFlags(),
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled files still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.Fetch.Dedupe == "" {
		c.Fetch.Dedupe = d.Fetch.Dedupe
	}
	if c.Fetch.RequestTimeout == 0 {
		c.Fetch.RequestTimeout = d.Fetch.RequestTimeout
	}
	if c.Fetch.RetryAttempts == 0 {
		c.Fetch.RetryAttempts = d.Fetch.RetryAttempts
	}
	c.Endpoint = strings.TrimSpace(c.Endpoint)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required (set SOCS_ENDPOINT)")
	}
	if c.Fetch.TruncationCap < 1 {
		return fmt.Errorf("fetch.truncation_cap must be >= 1 (got %d)", c.Fetch.TruncationCap)
	}
	if c.Fetch.MaxConcurrency < 1 {
		return fmt.Errorf("fetch.max_concurrency must be >= 1 (got %d)", c.Fetch.MaxConcurrency)
	}
	if c.Fetch.RateLimit < 0 {
		return fmt.Errorf("fetch.rate_limit must be >= 0 (got %g)", c.Fetch.RateLimit)
	}
	if c.Fetch.RetryAttempts < 1 {
		return fmt.Errorf("fetch.retry_attempts must be >= 1 (got %d)", c.Fetch.RetryAttempts)
	}
	if _, err := calendar.ParseDedupePolicy(c.Fetch.Dedupe); err != nil {
		return fmt.Errorf("fetch.dedupe: %w", err)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0 (got %s)", c.CacheTTL)
	}
	if c.HorizonDays < 1 {
		return fmt.Errorf("horizon_days must be >= 1 (got %d)", c.HorizonDays)
	}
	if c.Refresh != "" {
		if _, err := cron.ParseStandard(c.Refresh); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), .env and the environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, DefaultEnvFile)
}

func load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables already set in the environment.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Endpoint, "SOCS_ENDPOINT")
	setString(&c.UserAgent, "SOCS_USER_AGENT")
	setString(&c.Listen, "SOCS_LISTEN")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Refresh, "SOCS_REFRESH")

	var errs []error
	errs = append(errs,
		setDuration(&c.CacheTTL, "SOCS_CACHE_TTL"),
		setBool(&c.Log.Pretty, "LOG_PRETTY"),
		setInt(&c.Fetch.TruncationCap, "SOCS_TRUNCATION_CAP"),
		setInt(&c.Fetch.MaxConcurrency, "SOCS_MAX_CONCURRENCY"),
		setFloat(&c.Fetch.RateLimit, "SOCS_RATE_LIMIT"),
		setInt(&c.HorizonDays, "SOCS_HORIZON_DAYS"),
	)
	return errors.Join(errs...)
}

// ClientConfig maps the settings onto a client configuration.
func (c *Config) ClientConfig() (client.Config, error) {
	policy, err := calendar.ParseDedupePolicy(c.Fetch.Dedupe)
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig(c.Endpoint)
	cfg.UserAgent = c.UserAgent
	cfg.Flags = c.Fetch.Flags
	cfg.RequestTimeout = c.Fetch.RequestTimeout
	cfg.RateLimit = c.Fetch.RateLimit
	cfg.TruncationCap = c.Fetch.TruncationCap
	cfg.MaxConcurrency = c.Fetch.MaxConcurrency
	cfg.DedupePolicy = policy
	cfg.Retry.MaxAttempts = c.Fetch.RetryAttempts
	return cfg, nil
}

// LoggingConfig maps the settings onto a logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RedisOptions returns connection options for RedisURL, or nil when the
// store is disabled.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis_url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
