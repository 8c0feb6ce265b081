// Package main is the entry point for the SEOPilot connector API server.
//
// It loads configuration, opens the PostgreSQL pool, wires the session,
// usage, billing, and generation services around the backend API client,
// and serves the plugin-facing HTTP API with graceful shutdown on SIGINT
// and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seopilot/internal/api/handlers"
	"seopilot/internal/backend"
	"seopilot/internal/billing"
	"seopilot/internal/config"
	"seopilot/internal/core"
	"seopilot/internal/db"
	"seopilot/internal/metagen"
	"seopilot/internal/session"
	"seopilot/internal/usage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// tokenSource defers to the session store. The store is constructed after
// the API client because the usage cache sits between them; binding happens
// before the first request is served.
type tokenSource struct {
	store *session.Store
}

func (t *tokenSource) Token(ctx context.Context) string {
	if t.store == nil {
		return ""
	}
	return t.store.Token(ctx)
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("seopilot connector starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	sessionRepo := db.NewSessionRepository(pool)
	generationRepo := db.NewGenerationRepository(pool)
	settingsRepo := db.NewSettingsRepository(pool)

	// The backend client, usage cache, and session store reference each
	// other in a ring; the token source closes it after construction.
	tokens := &tokenSource{}
	apiClient := backend.NewAPIClient(
		&http.Client{Timeout: cfg.Backend.RequestTimeout},
		tokens,
		backend.APIClientConfig{
			BaseURL:   cfg.Backend.BaseURL,
			UserAgent: cfg.Backend.UserAgent,
			Logger:    logger,
		},
	)
	usageCache := usage.NewCache(apiClient, cfg.Usage.CacheTTL, nil, logger)
	sessionStore := session.NewStore(sessionRepo, usageCache, nil, logger)
	tokens.store = sessionStore

	sessionManager := session.NewManager(apiClient, sessionStore, logger)
	keyService := billing.NewKeyService(apiClient, settingsRepo, logger)
	billingService := billing.NewService(
		sessionStore,
		apiClient,
		settingsRepo,
		cfg.Billing.PriceMap(),
		cfg.Server.DashboardURL,
		logger,
	)
	webhookProcessor := billing.NewWebhookProcessor(
		&billing.StripeVerifier{},
		cfg.Billing.WebhookSecret.Unmask(),
		sessionStore,
		logger,
	)
	metaService := metagen.NewService(
		usageCache,
		apiClient,
		generationRepo,
		nil,
		logger,
		cfg.Generate.BulkConcurrency,
		cfg.Generate.BulkMaxPosts,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.SiteKeys = keyService

	authHandler := handlers.NewAuthHandler(sessionManager, sessionStore, logger, srv.Validator)
	usageHandler := handlers.NewUsageHandler(usageCache, logger)
	billingHandler := handlers.NewBillingHandler(billingService, keyService, settingsRepo, logger, srv.Validator)
	metaHandler := handlers.NewMetaHandler(metaService, logger, srv.Validator)
	webhookHandler := handlers.NewWebhookHandler(webhookProcessor, logger)

	srv.V1Routes = append(srv.V1Routes,
		authHandler.RegisterRoutes,
		usageHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		metaHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds the pgx pool from the database configuration.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// runHTTPServer starts the server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
