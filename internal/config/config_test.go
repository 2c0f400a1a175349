package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"BACKEND_BASE_URL": "https://api.example.test/",
		"BACKEND_TOKEN":    "secret",
		"REDIS_URL":        "redis://localhost:6379/0",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "https://api.example.test", cfg.BackendBaseURL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
	require.True(t, cfg.TicketPrintingDefault)
	require.False(t, cfg.PriceEditingDefault)
	require.True(t, cfg.ReductionsDefault)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["SESSION_TTL"] = "30m"
	env["FEATURE_PRICE_EDITING"] = "true"
	env["FEATURE_TICKET_PRINTING"] = "off"
	env["CORS_ALLOWED_ORIGINS"] = "http://a.test, http://b.test"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.True(t, cfg.PriceEditingDefault)
	require.False(t, cfg.TicketPrintingDefault)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoadMissingRequired(t *testing.T) {
	env := baseEnv()
	env["BACKEND_BASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["BACKEND_TOKEN"] = ""
	_, err = LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["REDIS_URL"] = ""
	_, err = LoadForTests(env)
	require.Error(t, err)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	env := baseEnv()
	env["BACKEND_TIMEOUT"] = "soon"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.BackendTimeout)
}
