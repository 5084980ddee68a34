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
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ferry/internal/api"
	"github.com/starford/ferry/internal/mcpserver"
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/processor"
	"github.com/starford/ferry/internal/routing"
	"github.com/starford/ferry/internal/scanner"
	"github.com/starford/ferry/internal/sse"
)

// ErrAlreadyRunning is returned when another instance holds the lock file.
var ErrAlreadyRunning = errors.New("another ferry instance is already running")

// Run starts the watcher with the given options and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc := app.service()
	cfg := svc.cfg
	logger := svc.logger
	svc.logConfig()

	unlock, err := acquireLock(cfg.Lock.Path)
	if err != nil {
		return err
	}
	defer unlock()

	// SSE broker receives every file outcome.
	broker := sse.NewBroker(
		sse.WithStatusThrottle(2*time.Second),
		sse.WithStatus(svc.tracker.Current),
	)
	defer broker.Close()

	proc := svc.processor(processor.WithCallback(broker.PublishResult))
	scan := svc.scanner(proc)

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: svc.httpHandler(scan, broker),
		}
		// Open event streams would otherwise hold Shutdown until its timeout.
		httpServer.RegisterOnShutdown(broker.Close)
	}

	logger.Info("Service starting...", slog.String("watch_path", cfg.Watch.Dir()))

	g, gCtx := errgroup.WithContext(ctx)

	// Scan loop.
	g.Go(func() error {
		return scan.Run(gCtx)
	})

	// fsnotify nudges; a watcher failure only costs the early ticks.
	g.Go(func() error {
		if err := scan.Watch(gCtx); err != nil {
			logger.Warn("file watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if httpServer != nil {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

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

		if httpServer != nil {
			logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Service stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context once a signal is received.
var errShutdown = errors.New("shutdown requested")

// RunOnce performs a single scan of the watched directory.
func RunOnce(ctx context.Context, opts ...Option) (scanner.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return scanner.Report{}, err
	}
	svc := app.service()
	svc.logConfig()

	unlock, err := acquireLock(svc.cfg.Lock.Path)
	if err != nil {
		return scanner.Report{}, err
	}
	defer unlock()

	return svc.scanner(svc.processor()).Tick(ctx)
}

// Route resolves where a file named filename would be moved, without
// touching the filesystem outside the dataset working copy.
func Route(ctx context.Context, filename string, opts ...Option) (routing.Key, models.Outcome, error) {
	app, err := newApplication(opts)
	if err != nil {
		return routing.Key{}, models.Outcome{}, err
	}
	svc := app.service()

	ctx, cancel := context.WithTimeout(ctx, svc.cfg.Dataset.LookupTimeout)
	defer cancel()

	key := svc.engine.Plan(filename)
	out, err := svc.engine.Route(ctx, filename)
	return key, out, err
}

// ServeMCP exposes the routing tools over MCP stdio. Logs must not go to
// stdout, which carries the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	svc := app.service()
	svc.logger.Info("MCP server starting", slog.String("dataset_path", svc.cfg.Dataset.Path))

	srv := mcpserver.New(svc.engine, svc.lookup, svc.beat, svc.cfg.Dataset.LookupTimeout)
	return srv.ServeStdio()
}

func (s *service) httpHandler(scan *scanner.Scanner, broker *sse.Broker) http.Handler {
	cfg := s.cfg

	h := api.NewHandler(s.tracker, s.engine, scan, cfg.Dataset.LookupTimeout)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if !s.store.IsDir(cfg.Watch.Dir()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"watch directory unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	return r
}

// acquireLock takes the single-instance lock at path. An empty path
// disables locking.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release lock", slog.String("path", path), slog.String("error", err.Error()))
		}
	}, nil
}
