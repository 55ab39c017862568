// Package config loads reportsql settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/Sternrassler/reportsql/pkg/pagination"
	"github.com/rs/zerolog/log"
)

// Environment variable names.
const (
	EnvRetryMaxAttempts = "REPORTSQL_RETRY_MAX_ATTEMPTS"
	EnvRetryBaseDelayMS = "REPORTSQL_RETRY_BASE_DELAY_MS"
	EnvRetryMaxDelayMS  = "REPORTSQL_RETRY_MAX_DELAY_MS"
	EnvRetryMultiplier  = "REPORTSQL_RETRY_MULTIPLIER"
	EnvRetryJitter      = "REPORTSQL_RETRY_JITTER"
	EnvRequestTimeoutMS = "REPORTSQL_REQUEST_TIMEOUT_MS"
	EnvPageSize         = "REPORTSQL_PAGE_SIZE"
	EnvEndpoint         = "REPORTSQL_ENDPOINT"
	EnvUsername         = "REPORTSQL_USERNAME"
	EnvPassword         = "REPORTSQL_PASSWORD"
	EnvReportPath       = "REPORTSQL_REPORT_PATH"
	EnvCacheTTLSeconds  = "REPORTSQL_CACHE_TTL_SECONDS"
	EnvRedisURL         = "REDIS_URL"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogPretty        = "LOG_PRETTY"
)

// DefaultCacheTTL is how long catalog metadata stays cached.
const DefaultCacheTTL = time.Hour

// Config holds all reportsql settings.
type Config struct {
	// Endpoint is the report service URL.
	Endpoint   string
	Username   string
	Password   string
	ReportPath string

	// PageSize is the number of rows per page; zero disables paging.
	PageSize int

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration

	Retry client.RetryPolicy

	// RedisURL is the address of the catalog cache. Empty disables caching.
	RedisURL string
	CacheTTL time.Duration

	LogLevel  logging.LogLevel
	LogPretty bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PageSize:       pagination.DefaultPageSize,
		RequestTimeout: client.DefaultConfig().Timeout,
		Retry:          client.DefaultRetryPolicy(),
		CacheTTL:       DefaultCacheTTL,
		LogLevel:       logging.LevelInfo,
	}
}

// Load reads the configuration from the environment. Values that do not
// parse keep their default and are reported as warnings.
func Load() Config {
	cfg := Default()

	cfg.Endpoint = getEnv(EnvEndpoint, cfg.Endpoint)
	cfg.Username = getEnv(EnvUsername, cfg.Username)
	cfg.Password = os.Getenv(EnvPassword)
	cfg.ReportPath = getEnv(EnvReportPath, cfg.ReportPath)
	cfg.RedisURL = getEnv(EnvRedisURL, cfg.RedisURL)
	cfg.LogLevel = logging.LogLevel(getEnv(EnvLogLevel, string(cfg.LogLevel)))
	cfg.LogPretty = getEnvBool(EnvLogPretty, cfg.LogPretty)

	cfg.PageSize = getEnvInt(EnvPageSize, cfg.PageSize)
	cfg.RequestTimeout = getEnvMillis(EnvRequestTimeoutMS, cfg.RequestTimeout)
	cfg.CacheTTL = time.Duration(getEnvInt(EnvCacheTTLSeconds, int(cfg.CacheTTL/time.Second))) * time.Second

	cfg.Retry.MaxAttempts = getEnvInt(EnvRetryMaxAttempts, cfg.Retry.MaxAttempts)
	cfg.Retry.BaseDelay = getEnvMillis(EnvRetryBaseDelayMS, cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = getEnvMillis(EnvRetryMaxDelayMS, cfg.Retry.MaxDelay)
	cfg.Retry.Multiplier = getEnvFloat(EnvRetryMultiplier, cfg.Retry.Multiplier)
	cfg.Retry.JitterFraction = getEnvFloat(EnvRetryJitter, cfg.Retry.JitterFraction)

	if err := cfg.Retry.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid retry settings, using defaults")
		cfg.Retry = client.DefaultRetryPolicy()
	}
	return cfg
}

// Validate checks the settings needed to reach the report service.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%s is required", EnvEndpoint)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}
	return nil
}

// ClientConfig returns the transport configuration.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Timeout = c.RequestTimeout
	return cfg
}

// LoggingConfig returns the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// Query binds sql to the configured service.
func (c Config) Query(sql string) pagination.Query {
	return pagination.Query{
		SQL:        sql,
		Endpoint:   c.Endpoint,
		Username:   c.Username,
		Password:   c.Password,
		ReportPath: c.ReportPath,
		PageSize:   c.PageSize,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		warnInvalid(key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		warnInvalid(key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, int(defaultValue/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		warnInvalid(key, value, defaultValue)
		return defaultValue
	}
	return b
}

func warnInvalid(key, value string, defaultValue any) {
	log.Warn().
		Str("variable", key).
		Str("value", value).
		Interface("default", defaultValue).
		Msg("Invalid environment value, using default")
}
