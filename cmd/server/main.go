package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/pulse-backend/internal/account"
	"github.com/kjannette/pulse-backend/internal/api"
	"github.com/kjannette/pulse-backend/internal/auth"
	"github.com/kjannette/pulse-backend/internal/config"
	"github.com/kjannette/pulse-backend/internal/db"
	"github.com/kjannette/pulse-backend/internal/logging"
	"github.com/kjannette/pulse-backend/internal/market"
	"github.com/kjannette/pulse-backend/internal/notifications"
	"github.com/kjannette/pulse-backend/internal/repository"
	"github.com/kjannette/pulse-backend/internal/uid"
)

const banner = `
╔══════════════════════════════════════╗
║        PULSE Social Backend          ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", cfg.ServiceName).Logger()

	if err := cfg.Validate(log); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	cfg.Print(log)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := logging.Component(log, "db")
	dbLog.Info().Str("host", cfg.DBHost).Int("port", cfg.DBPort).Str("name", cfg.DBName).Msg("connecting")
	pool, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxConns)
	if err != nil {
		dbLog.Fatal().Err(err).Msg("connection failed")
	}
	defer func() {
		pool.Close()
		dbLog.Info().Msg("connection pool closed")
	}()

	if err := db.TestConnection(ctx, pool, dbLog); err != nil {
		dbLog.Error().Err(err).Msg("test query failed")
		return
	}

	// Repos and services
	users := repository.NewUserRepo(pool)
	alerts := notifications.NewSender(cfg.AlertWebhookURL, cfg.ServiceName, logging.Component(log, "alerts"))
	tokens := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL, cfg.ServiceName)
	accounts := account.NewService(users, uid.NewAllocator(users), tokens, alerts, logging.Component(log, "account"))

	// Upstream market data
	stocks := market.NewEquity(market.Options{
		BaseURL: cfg.EquityBaseURL,
		Timeout: cfg.UpstreamTimeout,
		Retries: cfg.UpstreamRetries,
		Log:     logging.Component(log, "equity"),
	})
	futures := market.NewFutures(market.Options{
		BaseURL: cfg.FuturesBaseURL,
		Timeout: cfg.UpstreamTimeout,
		Retries: cfg.UpstreamRetries,
		Log:     logging.Component(log, "futures"),
	})

	srv := api.NewServer(api.Deps{
		DB:       pool,
		Stocks:   stocks,
		Futures:  futures,
		Accounts: accounts,
		Tokens:   tokens,
		Log:      logging.Component(log, "api"),
	}, cfg.APIPort, cfg.CORSAllowOrigin)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info().Msg("all services started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully")
	case err := <-serverErr:
		log.Error().Err(err).Msg("api server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
