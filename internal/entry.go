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

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/repo"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/storage"
)

// buildTree constructs the storage backend selected by the configuration.
func buildTree(ctx context.Context, cfg *Config) (storage.Tree, error) {
	switch cfg.Storage.Backend {
	case BackendFS:
		if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
			return nil, fmt.Errorf("create storage root: %w", err)
		}
		return storage.NewFS(cfg.Storage.Root)
	case BackendMem:
		return storage.NewMem(), nil
	case BackendS3:
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.Storage.Root,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			PathStyle: cfg.Storage.S3.PathStyle,
		})
	case BackendAzure:
		return storage.NewAzure(ctx, cfg.Storage.Azure.ConnectionString, cfg.Storage.Azure.Container)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// runtime bundles the core components shared by the HTTP and MCP
// entrypoints: configuration, logger, storage tree, repository and index.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	tree   storage.Tree
	repo   *repo.TreeRepo
	db     *index.DB
}

func (rt *runtime) close() {
	_ = rt.db.Close()
	_ = rt.repo.Close()
}

// newRuntime applies the options, sets up logging on logDest and brings up
// storage, repository and index. The index is synced once so search works
// before the first write arrives.
func newRuntime(ctx context.Context, logDest *os.File, opts []Option) (*runtime, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config
	if app.logLevel != nil {
		cfg.App.LogLevel = *app.logLevel
	}

	logger := slog.New(slog.NewJSONHandler(logDest, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	tree, err := buildTree(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	nr, err := repo.NewTreeRepo(ctx, tree, cfg.Storage.Scope, logger)
	if err != nil {
		_ = tree.Close()
		return nil, fmt.Errorf("init repository: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		_ = nr.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(ctx, db, nr, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{cfg: cfg, logger: logger, tree: tree, repo: nr, db: db}, nil
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, os.Stdout, opts)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("storage_scope", cfg.Storage.Scope),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker()
	defer broker.Close()

	svc := noteservice.NewService(rt.repo, rt.db, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health probes stay outside the authenticated API group.
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Only the filesystem backend has something to watch; remote backends
	// rely on the startup sync and on writes going through the service.
	if fsTree, ok := rt.tree.(*storage.FS); ok {
		g.Go(func() error {
			err := index.Watch(gCtx, rt.db, rt.repo, fsTree.Root(), logger, broker.PublishNoteEvent)
			if err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

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

// RunMCP starts the MCP stdio server with the given options. Logs go to
// stderr because stdout carries the JSON-RPC stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, os.Stderr, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting on stdio",
		slog.String("storage_backend", rt.cfg.Storage.Backend),
		slog.String("storage_root", rt.cfg.Storage.Root))

	svc := noteservice.NewService(rt.repo, rt.db, nil)
	return mcpserver.New(svc).ServeStdio()
}
