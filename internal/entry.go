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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/studyai/internal/api"
	"github.com/starford/studyai/internal/artifact"
	"github.com/starford/studyai/internal/auth"
	"github.com/starford/studyai/internal/backend"
	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/inbox"
	"github.com/starford/studyai/internal/outbox"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/storage"
	"github.com/starford/studyai/internal/summaries"
)

// services are the wired components shared by every command.
type services struct {
	logger     *slog.Logger
	users      auth.Provider
	db         *docstore.DB
	queue      *outbox.Queue
	worker     *outbox.Worker
	broker     *artifact.Broker
	persist    *persist.Adapter
	summaries  *summaries.Service
	flashcards *flashcards.Workflow
}

func (s *services) Close() {
	s.broker.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close document store", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build opens the document store and wires the backend client, outbox,
// broker and domain services.
func (a *application) build() (*services, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := docstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init document store: %w", err)
	}
	queue, err := outbox.NewQueue(db.Conn())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init outbox: %w", err)
	}

	client := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger))
	users := auth.Resolver{Default: cfg.Auth.UserID}
	broker := artifact.NewBroker()

	return &services{
		logger: logger,
		users:  users,
		db:     db,
		queue:  queue,
		worker: outbox.NewWorker(queue, db, outbox.Config{
			BatchSize:   cfg.Outbox.BatchSize,
			Interval:    cfg.Outbox.Interval,
			MaxAttempts: cfg.Outbox.MaxAttempts,
			BaseBackoff: cfg.Outbox.BaseBackoff,
			MaxBackoff:  cfg.Outbox.MaxBackoff,
		}, logger),
		broker: broker,
		persist: persist.New(users, client, db, queue, broker,
			persist.WithSummaryType(cfg.Backend.SummaryType),
			persist.WithLogger(logger)),
		summaries:  summaries.NewService(db, users),
		flashcards: flashcards.NewWorkflow(client, db, users, broker, logger),
	}, nil
}

// Run starts the HTTP server, the summaries view, the outbox worker and,
// when enabled, the inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	svc, err := app.build()
	if err != nil {
		return err
	}
	defer svc.Close()
	logger := svc.logger

	view := summaries.NewView(svc.summaries, svc.broker,
		summaries.WithHighlightDelay(cfg.Sync.HighlightDelay),
		summaries.WithViewLogger(logger))

	apiRouter := api.NewRouter(api.Deps{
		Persist:     svc.persist,
		Summaries:   svc.summaries,
		View:        view,
		Flashcards:  svc.flashcards,
		Outbox:      svc.queue,
		Users:       svc.users,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      svc.broker,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.db.Conn().PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	var (
		files *storage.FS
		in    *inbox.Inbox
	)
	if cfg.Inbox.Enabled {
		files, err = storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		in = inbox.New(files, svc.persist, svc.db, nil, logger, func(kind, path string) {
			svc.broker.Publish(artifact.Event{Type: artifact.InboxPrefix + kind, ID: path})
		})
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return view.Run(gCtx)
	})

	g.Go(func() error {
		return svc.worker.Run(gCtx)
	})

	if in != nil {
		g.Go(func() error {
			return in.Watch(gCtx, files.Root(), cfg.Inbox.Settle)
		})
	}

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

// errShutdown cancels the group so the view, worker and watcher stop with
// the HTTP server.
var errShutdown = errors.New("shutdown")
