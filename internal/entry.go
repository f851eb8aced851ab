// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/notesight/internal/api"
	"github.com/starford/notesight/internal/indexsync"
	"github.com/starford/notesight/internal/insights"
	"github.com/starford/notesight/internal/mcpserver"
	"github.com/starford/notesight/internal/noteservice"
	"github.com/starford/notesight/internal/search"
	"github.com/starford/notesight/internal/sse"
	"github.com/starford/notesight/internal/store"
)

// stack is the wired Record Store, search engine and write gateway.
type stack struct {
	db     *store.DB
	engine search.Engine
	sync   *indexsync.Synchronizer
	svc    *noteservice.Service
}

func (s *stack) Close() {
	if s.engine != nil {
		_ = s.engine.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := newLogger(app.logOutput, app.config.App.LogLevel)
	slog.SetDefault(logger)

	cfg := app.config
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("search_backend", cfg.Search.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return app, logger, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func openEngine(cfg SearchConfig) (search.Engine, error) {
	switch cfg.Backend {
	case BackendBleve:
		return search.NewBleve(cfg.Path), nil
	case BackendElasticsearch:
		return search.NewElastic(search.ElasticConfig{
			Addresses: cfg.Hosts,
			Index:     cfg.Index,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// buildStack opens the stores and wires the gateway. withInsights requires a
// usable inference token.
func buildStack(cfg *Config, logger *slog.Logger, withInsights bool, extra ...noteservice.Option) (*stack, error) {
	st := &stack{}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	st.db = db

	engine, err := openEngine(cfg.Search)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init search: %w", err)
	}
	st.engine = engine
	st.sync = indexsync.New(engine, db, indexsync.WithLogger(logger))

	opts := []noteservice.Option{
		noteservice.WithLogger(logger),
		noteservice.WithSearchLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK),
	}
	if withInsights {
		llm, err := insights.NewHuggingFace(insights.HuggingFaceConfig{
			BaseURL:       cfg.Insights.BaseURL,
			Model:         cfg.Insights.Model,
			Token:         cfg.Insights.Token,
			Timeout:       cfg.Insights.Timeout,
			RatePerMinute: cfg.Insights.RatePerMinute,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		params := insights.Params{Temperature: cfg.Insights.Temperature, MaxNewTokens: cfg.Insights.MaxNewTokens}
		opts = append(opts, noteservice.WithInsights(insights.NewGenerator(llm, params, logger)))
	}
	st.svc = noteservice.NewService(db, st.sync, append(opts, extra...)...)
	return st, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(30 * time.Second)
	defer broker.Close()

	st, err := buildStack(cfg, logger, true, noteservice.WithObserver(broker.PublishNoteEvent))
	if err != nil {
		return err
	}
	defer st.Close()

	// The index is also created lazily on first write; a cluster that is down
	// now only makes the service unready.
	if err := st.sync.EnsureIndexReady(ctx); err != nil {
		logger.Warn("search index bootstrap failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(st.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", readyHandler(st.svc))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
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

		// SSE streams never end on their own; closing the broker releases them.
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

type healthStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func readyHandler(svc *noteservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, healthStatus{Status: "ok"}
		if err := svc.Ready(r.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Reason: err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Reindex bootstraps the search index and indexes every note in the Record
// Store. It stops at the first failure.
func Reindex(ctx context.Context, opts ...Option) (int, error) {
	app, logger, err := setup(opts)
	if err != nil {
		return 0, err
	}

	st, err := buildStack(app.config, logger, false)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	n, err := st.svc.Reindex(ctx)
	if err != nil {
		logger.Error("Reindex failed", slog.Int("indexed", n), slog.String("error", err.Error()))
		return n, err
	}
	logger.Info("Reindex complete", slog.Int("indexed", n))
	return n, nil
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Insights are offered only when an inference token is configured.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}

	withInsights := app.config.Insights.Token != ""
	if !withInsights {
		logger.Warn("insights token not set, get_insights will report a configuration error")
	}
	st, err := buildStack(app.config, logger, withInsights)
	if err != nil {
		return err
	}
	defer st.Close()

	return mcpserver.New(st.svc, app.version).ServeStdio()
}
