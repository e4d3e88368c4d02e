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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mimir/internal/api"
	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/embedding"
	"github.com/starford/mimir/internal/graph"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/promote"
	"github.com/starford/mimir/internal/scoring"
	"github.com/starford/mimir/internal/sse"
	"github.com/starford/mimir/internal/vectorstore"
)

// App is a fully wired application: the memory service plus the
// collaborators a caller may need directly.
type App struct {
	Config  *Config
	Service *memoryservice.Service
	Sync    *index.Synchronizer
	Corpus  *corpus.FS

	store vectorstore.Store
}

// Close releases the vector store.
func (a *App) Close() error {
	return a.store.Close()
}

// Build wires the application from config: corpus, vector store,
// embedder, graph builder, promotion engine, synchronizer, service.
// The corpus root is created when absent.
func Build(cfg *Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Corpus.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus root: %w", err)
	}

	corp, err := corpus.NewFS(cfg.Corpus.Root, corpus.Layout{
		SummaryFile:  cfg.Corpus.SummaryFile,
		ReferenceDir: cfg.Corpus.ReferenceDir,
		LogDir:       cfg.Corpus.LogDir,
	})
	if err != nil {
		return nil, fmt.Errorf("init corpus: %w", err)
	}

	var store vectorstore.Store
	switch cfg.Vector.Driver {
	case VectorDriverMemory:
		store = vectorstore.NewMemory()
	default:
		store, err = vectorstore.Open(cfg.Vector.Path, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("init vector store: %w", err)
		}
	}

	embedder := embedding.NewOllama(embedding.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout(),
	})

	var builder graph.Builder = graph.Noop{}
	graphPath := cfg.Graph.Path
	if graphPath != "" {
		if !filepath.IsAbs(graphPath) {
			graphPath = filepath.Join(cfg.Corpus.Root, graphPath)
		}
		builder = graph.NewFileBuilder(graphPath)
	}

	sync := index.NewSynchronizer(corp, embedder, store, builder,
		logger.With(slog.String("component", "index")))

	engine := promote.NewEngine(corp, scoring.KeywordScorer{},
		logger.With(slog.String("component", "promote")),
		promote.WithMinChunkLength(cfg.Promotion.MinChunkLength))

	svc := memoryservice.New(corp, engine, sync, store, embedder, graphPath,
		logger.With(slog.String("component", "service")))

	return &App{
		Config:  cfg,
		Service: svc,
		Sync:    sync,
		Corpus:  corp,
		store:   store,
	}, nil
}

// Run starts the server process: initial sync, HTTP API with SSE, and
// the corpus watcher, supervised until a shutdown signal.
func Run(ctx context.Context, opts ...Option) error {
	options := &application{}
	for _, opt := range opts {
		opt(options)
	}
	if options.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := options.config

	// Initialize structured JSON logger.
	logger := options.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.Level(),
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("corpus_root", cfg.Corpus.Root),
		slog.String("vector_driver", cfg.Vector.Driver),
		slog.String("embedding_model", cfg.Embedding.Model),
		slog.String("log_level", cfg.App.Level().String()))

	app, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Initial sync. Failure is not fatal for the server: the embedding
	// backend may still be starting, and the watcher retries on the
	// next corpus change.
	if _, err := app.Sync.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API router.
	defaults := api.Defaults{
		DaysBack:      cfg.Promotion.DaysBack,
		MinConfidence: cfg.Promotion.MinConfidence,
		DaysToKeep:    cfg.Promotion.DaysToKeep,
		SearchK:       cfg.Search.K,
	}
	apiRouter := api.NewRouter(app.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, defaults)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
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

	// Start corpus watcher with SSE callback.
	g.Go(func() error {
		watchLogger := logger.With(slog.String("component", "watcher"))
		if err := index.Watch(gCtx, app.Sync, cfg.Corpus.Root, 0, watchLogger, func(stats *index.Stats) {
			broker.PublishIndexUpdated(stats)
		}); err != nil {
			return fmt.Errorf("watcher error: %w", err)
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
