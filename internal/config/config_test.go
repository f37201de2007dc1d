package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"API_PORT", "DB_MAX_CONNS", "UPSTREAM_TIMEOUT", "JWT_TTL", "EQUITY_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.APIPort)
	assert.Equal(t, 20, cfg.DBMaxConns)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.EquityBaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_PORT", "8080")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("UPSTREAM_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 2, cfg.UpstreamRetries, "unparsable values keep the default")
}

func TestLoad_RejectsNonPositivePool(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{UpstreamTimeout: time.Second, JWTTTL: time.Hour}
	err := cfg.Validate(zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "DB_USER is required")

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.DBUser = "postgres"
	assert.NoError(t, cfg.Validate(zerolog.Nop()))
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: 5433, DBName: "social"}
	assert.Equal(t, "postgres://u:p@db:5433/social?sslmode=disable", cfg.DSN())
}
