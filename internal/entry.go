// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/inflight"
	"github.com/starford/dagaz/internal/mcpserver"
	"github.com/starford/dagaz/internal/noteservice"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/store"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := initLogger(app.logOutput, cfg.App.LogLevel)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("reorder_backend", cfg.Reorder.Backend),
		slog.String("reorder_policy", cfg.Reorder.Policy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	slot, closeSlot, err := newSlot(cfg.Reorder)
	if err != nil {
		return fmt.Errorf("init reorder slot: %w", err)
	}
	defer closeSlot()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	gate := inflight.NewGate(slot, cfg.Reorder.Policy, cfg.Reorder.WaitTimeout)
	svc := noteservice.NewService(db, gate, broker)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	mountHealth(r, svc)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Writes from other processes (a second server, the MCP server) only
	// reach clients through the database file.
	g.Go(func() error {
		if err := store.Watch(gCtx, db, logger, func() { broker.PublishChanged("") }); err != nil {
			logger.Warn("store watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := initLogger(app.logOutput, cfg.App.LogLevel)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	slot, closeSlot, err := newSlot(cfg.Reorder)
	if err != nil {
		return fmt.Errorf("init reorder slot: %w", err)
	}
	defer closeSlot()

	gate := inflight.NewGate(slot, cfg.Reorder.Policy, cfg.Reorder.WaitTimeout)
	srv := mcpserver.New(noteservice.NewService(db, gate, nil), cfg.MCP.Workspace)

	logger.Info("MCP server starting",
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("workspace", cfg.MCP.Workspace))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// errShutdown stops the errgroup once shutdown has been handled so the
// watcher goroutine is cancelled too.
var errShutdown = errors.New("shutdown")

func initLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// newSlot builds the reorder slot for the configured backend. The returned
// func releases its resources.
func newSlot(cfg ReorderConfig) (inflight.Slot, func(), error) {
	switch cfg.Backend {
	case ReorderBackendRedis:
		r, err := inflight.NewRedis(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return inflight.NewLocal(cfg.TTL), func() {}, nil
	}
}

func mountHealth(r chi.Router, svc *noteservice.Service) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ready(ctx); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
