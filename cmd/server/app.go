package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/platform/cache"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/platform/postgres"
	"github.com/courtside/stringing-api/internal/service"
	"github.com/courtside/stringing-api/internal/service/auth"
)

// application holds the wired dependency graph for the server process.
type application struct {
	config *config.Config
	logger *slog.Logger

	db         *sql.DB
	availCache *cache.AvailabilityCache

	verifier    auth.TokenVerifier
	drafts      *service.DraftLifecycle
	coordinator *service.SubmissionCoordinator
	resolver    *service.EntitlementResolver
	ledger      *service.CreditLedger
	capacity    *service.CapacityNegotiator
}

// newApplication loads configuration and builds every component, bottom-up:
// database, migrations, cache, stores, services. Fails fast on anything
// required; only the Redis cache is allowed to be absent.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &application{
		config: cfg,
		logger: log,
		db:     db,
	}

	// The cache is an optimization; a dead Redis only costs read traffic.
	availCache := cache.NewAvailabilityCache(cfg.Redis, log)
	var cacher service.AvailabilityCacher
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := availCache.Ping(pingCtx); err != nil {
		log.Warn("availability cache unavailable, serving uncached",
			slog.String("error", err.Error()))
		_ = availCache.Close()
	} else {
		app.availCache = availCache
		cacher = availCache
	}

	apps := postgres.NewPostgresApplicationStore(db, log)
	grants := postgres.NewPostgresCreditGrantStore(db, log)
	slots := postgres.NewPostgresSlotStore(db, log)
	orders := postgres.NewPostgresOrderStore(db, log)

	app.verifier, err = auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	app.resolver, err = service.NewEntitlementResolver(orders, apps, log)
	if err != nil {
		return nil, err
	}
	app.ledger, err = service.NewCreditLedger(grants, log)
	if err != nil {
		return nil, err
	}
	app.capacity, err = service.NewCapacityNegotiator(db, slots, cacher, cfg.Schedule, log)
	if err != nil {
		return nil, err
	}
	app.drafts, err = service.NewDraftLifecycle(db, apps, app.resolver, log)
	if err != nil {
		return nil, err
	}
	app.coordinator, err = service.NewSubmissionCoordinator(
		db, apps, grants, orders, app.resolver,
		service.NewStepValidationMachine(),
		service.NewPricingEngine(cfg.Pricing, log),
		app.ledger, app.capacity, log,
	)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// run starts the HTTP server and blocks until the context is canceled or
// the server fails, then shuts down within the configured timeout.
func (app *application) run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", slog.Int("port", app.config.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	timeout := time.Duration(app.config.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	app.logger.Info("server shutdown completed")
	return nil
}

// cleanup releases process-lifetime resources. Safe to call more than once.
func (app *application) cleanup() {
	if app.availCache != nil {
		if err := app.availCache.Close(); err != nil {
			app.logger.Warn("failed to close availability cache", slog.String("error", err.Error()))
		}
		app.availCache = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn("failed to close database", slog.String("error", err.Error()))
		}
		app.db = nil
	}
}
