package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/config"
	"github.com/veldtman/grind-api/internal/platform/memstore"
	"github.com/veldtman/grind-api/internal/platform/postgres"
	"github.com/veldtman/grind-api/internal/realtime"
	"github.com/veldtman/grind-api/internal/security"
	"github.com/veldtman/grind-api/internal/service"
	"github.com/veldtman/grind-api/internal/snapshot"
	"github.com/veldtman/grind-api/internal/store"
	"github.com/veldtman/grind-api/internal/tick"
)

// application holds the fully wired service graph. Everything is explicit,
// constructed state: no package-level singletons, so tests can build and
// discard whole instances.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	queues    store.QueueStore
	snapshots store.SnapshotStore
	audits    store.AuditStore

	manager   *atomicops.Manager
	snapMgr   *snapshot.Manager
	snapSched *snapshot.Scheduler
	hub       *realtime.Hub
	svc       *service.QueueService
	tokens    *security.TokenManager
	ticker    *tick.Processor
}

// newApplication wires every component from configuration. A configured
// database URL selects the Postgres stores (running migrations first); an
// empty URL falls back to the in-memory stores for local development.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if cfg.Database.URL != "" {
		db, err := setupDatabase(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(db, logger); err != nil {
			db.Close()
			return nil, err
		}
		app.db = db
		app.queues = postgres.NewQueueStore(db)
		app.snapshots = postgres.NewSnapshotStore(db)
		app.audits = postgres.NewAuditStore(db)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		app.queues = memstore.NewQueueStore()
		app.snapshots = memstore.NewSnapshotStore()
		app.audits = memstore.NewAuditStore()
	}

	tokens, err := security.NewTokenManager([]byte(cfg.Auth.TokenSigningKey), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	app.tokens = tokens

	cipher, err := security.NewFieldCipher([]byte(cfg.Auth.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create field cipher: %w", err)
	}

	app.manager = atomicops.NewManager(app.queues, atomicops.DefaultConfig(), logger)
	app.hub = realtime.NewHub(app.queues, logger, realtime.HubConfig{})
	app.snapMgr = snapshot.NewManager(app.queues, app.snapshots, app.manager, logger)
	app.snapSched = snapshot.NewScheduler(app.snapMgr, app.queues, cfg.Queue.SnapshotInterval, logger)

	app.svc = service.NewQueueService(
		app.manager,
		app.queues,
		security.NewValidator(),
		security.NewRateLimiter(nil),
		security.NewAuditLogger(app.audits).WithCipher(cipher),
		app.hub,
		logger,
	)

	app.ticker = tick.NewProcessor(
		app.manager, app.queues, app.hub,
		cfg.Queue.TickInterval, cfg.Queue.TickWorkers, logger,
	)

	return app, nil
}

// run starts the background loops and the HTTP server, then blocks until a
// shutdown signal arrives.
func (app *application) run(ctx context.Context) error {
	app.hub.Start(ctx)
	app.ticker.Start()
	app.snapSched.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("server starting", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-shutdownCh:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		app.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("run context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
	}

	app.cleanup()
	app.logger.Info("server shutdown complete")
	return nil
}

// cleanup stops background work and releases resources, newest first.
func (app *application) cleanup() {
	app.snapSched.Stop()
	app.ticker.Stop()
	app.hub.Stop()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
