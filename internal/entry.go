// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/decorate"
	"github.com/starford/raido/internal/kvstore"
	"github.com/starford/raido/internal/linkservice"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/watch"
)

// core holds the wired service graph shared by the HTTP and MCP entrypoints.
type core struct {
	logger *slog.Logger
	db     *kvstore.DB
	svc    *linkservice.Service
}

func buildCore(cfg *Config) (*core, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the current vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := kvstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init settings store: %w", err)
	}

	reg, err := registry.Open(registry.NewSQLiteStore(db))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load vault registry: %w", err)
	}

	svc := linkservice.New(reg, cache.NewManager(store, logger), cfg.Vault.Path, logger)
	return &core{logger: logger, db: db, svc: svc}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()
	logger := c.logger
	svc := c.svc

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Watcher follows every mapped vault root and publishes document events.
	watcher := watch.New(svc, logger, func(kind, vault, path string) {
		broker.PublishDocumentEvent(kind, vault, path)
	})

	// Registry changes retarget the watcher and notify SSE clients.
	svc.Registry().SetOnChange(func(op, name string) {
		watcher.Refresh()
		broker.PublishRegistryEvent(op, name)
	})
	svc.NotifyPersistFailure = func(name string, err error) {
		logger.Error("registry persist failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		broker.PublishRegistryEvent("error", name)
	}

	dec := decorate.New(svc)
	apiRouter := api.NewRouter(svc, dec, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher.
	g.Go(func() error {
		if err := watcher.Run(gCtx); err != nil {
			logger.Warn("vault watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio with the given options.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	c, err := buildCore(app.config)
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.svc).ServeStdio()
}
