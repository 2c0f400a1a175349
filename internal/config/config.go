// Package config loads the terminal service configuration from the
// environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	BackendBaseURL     string
	BackendToken       string
	RedisURL           string
	CORSAllowedOrigins []string

	SessionTTL time.Duration
	CatalogTTL time.Duration

	BackendTimeout     time.Duration
	RetryMaxAttempts   int
	RetryBase          time.Duration
	RetryJitterPercent float64
	BreakerMaxFailures int
	BreakerOpenFor     time.Duration

	OfflineMaxRetry  int
	OfflineRetention time.Duration

	RateLimitPerMinute int

	TicketPrintingDefault     bool
	AutoTicketPrintingDefault bool
	PriceEditingDefault       bool
	ReductionsDefault         bool

	LogFormat       string
	LogLevel        string
	TracingEnabled  bool
	TracingEndpoint string
	TracingSampling float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		BackendBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendToken:       strings.TrimSpace(k.String("BACKEND_TOKEN")),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SessionTTL: parseDuration(k.String("SESSION_TTL"), "12h"),
		CatalogTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "10s"),
		RetryMaxAttempts:   intOrDefault(k.Int("RETRY_MAX_ATTEMPTS"), 3),
		RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryJitterPercent: floatOrDefault(k.Float64("RETRY_JITTER_PERCENT"), 0.2),
		BreakerMaxFailures: intOrDefault(k.Int("BREAKER_MAX_FAILURES"), 5),
		BreakerOpenFor:     parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		OfflineMaxRetry:  intOrDefault(k.Int("OFFLINE_MAX_RETRY"), 25),
		OfflineRetention: parseDuration(k.String("OFFLINE_RETENTION"), "168h"),

		RateLimitPerMinute: intOrDefault(k.Int("RATE_LIMIT_PER_MINUTE"), 300),

		TicketPrintingDefault:     parseBoolDefault(k.String("FEATURE_TICKET_PRINTING"), true),
		AutoTicketPrintingDefault: parseBoolDefault(k.String("FEATURE_AUTO_TICKET_PRINTING"), false),
		PriceEditingDefault:       parseBoolDefault(k.String("FEATURE_PRICE_EDITING"), false),
		ReductionsDefault:         parseBoolDefault(k.String("FEATURE_REDUCTIONS"), true),

		LogFormat:       valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:        valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		TracingEnabled:  parseBoolDefault(k.String("OBS_TRACING_ENABLED"), false),
		TracingEndpoint: strings.TrimSpace(k.String("OBS_TRACING_ENDPOINT")),
		TracingSampling: floatOrDefault(k.Float64("OBS_TRACING_SAMPLING"), 1),
	}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.BackendToken == "" {
		return nil, errors.New("BACKEND_TOKEN is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
