package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	// HTTP
	APIPort         int
	CORSAllowOrigin string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Upstream market data
	EquityBaseURL   string
	FuturesBaseURL  string
	UpstreamTimeout time.Duration
	UpstreamRetries int

	// Logging
	LogLevel  string
	LogPretty bool

	// Ops alerts
	AlertWebhookURL string
	ServiceName     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:         envInt("API_PORT", 3001),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "social_backend"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),
		DBMaxConns: envInt("DB_MAX_CONNS", 20),

		JWTSecret: envStr("JWT_SECRET", ""),
		JWTTTL:    envDuration("JWT_TTL", 24*time.Hour),

		EquityBaseURL:   envStr("EQUITY_BASE_URL", "https://query1.finance.yahoo.com"),
		FuturesBaseURL:  envStr("FUTURES_BASE_URL", "https://fapi.binance.com"),
		UpstreamTimeout: envDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		UpstreamRetries: envInt("UPSTREAM_RETRIES", 2),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogPretty: envBool("LOG_PRETTY", false),

		AlertWebhookURL: envStr("ALERT_WEBHOOK_URL", ""),
		ServiceName:     envStr("SERVICE_NAME", "pulse-backend"),
	}

	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", cfg.DBMaxConns)
	}

	return cfg, nil
}

// Validate returns an error for fatal gaps and logs a warning for the rest.
func (c *Config) Validate(log zerolog.Logger) error {
	var errs []string

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < 32 {
		log.Warn().Int("length", len(c.JWTSecret)).Msg("JWT_SECRET is shorter than 32 bytes")
	}
	if c.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, "UPSTREAM_TIMEOUT must be positive")
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, "JWT_TTL must be positive")
	}
	if c.AlertWebhookURL == "" {
		log.Warn().Msg("ALERT_WEBHOOK_URL not set, ops alerts go to the log only")
	}
	if c.CORSAllowOrigin == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGIN is *, any origin may call the API")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print(log zerolog.Logger) {
	log.Info().
		Int("api_port", c.APIPort).
		Str("db", fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName)).
		Int("db_max_conns", c.DBMaxConns).
		Str("equity_base_url", c.EquityBaseURL).
		Str("futures_base_url", c.FuturesBaseURL).
		Dur("upstream_timeout", c.UpstreamTimeout).
		Int("upstream_retries", c.UpstreamRetries).
		Dur("jwt_ttl", c.JWTTTL).
		Str("alerts", boolLabel(c.AlertWebhookURL != "", "webhook", "log only")).
		Msg("configuration loaded")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
