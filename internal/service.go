package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/ferry/internal/dataset"
	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/processor"
	"github.com/starford/ferry/internal/routing"
	"github.com/starford/ferry/internal/scanner"
	"github.com/starford/ferry/internal/storage"
)

// service holds the components shared by every command.
type service struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	lookup  *dataset.Lookup
	engine  *routing.Engine
	tracker *heartbeat.Tracker
	beat    *heartbeat.Writer
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

func (a *application) service() *service {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store := storage.NewFS()
	lookup := dataset.New(cfg.Dataset.Options(), logger)

	return &service{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		lookup:  lookup,
		engine:  routing.NewEngine(lookup, routing.NewResolver(logger), logger),
		tracker: heartbeat.NewTracker(cfg.Watch.Dir()),
		beat:    heartbeat.NewWriter(cfg.Heartbeat.Path, store, logger),
	}
}

func (s *service) logConfig() {
	cfg := s.cfg
	s.logger.Info("Configuration loaded",
		slog.String("watch_path", cfg.Watch.Dir()),
		slog.String("error_folder", cfg.Watch.ErrorDir()),
		slog.Duration("poll_interval", cfg.Watch.PollInterval),
		slog.Duration("settle_delay", cfg.Watch.SettleDelay),
		slog.Any("exclude_markers", cfg.Watch.ExcludeMarkers),
		slog.String("dataset_path", cfg.Dataset.Path),
		slog.String("dataset_sheet", cfg.Dataset.Sheet),
		slog.String("match_column", cfg.Dataset.Columns.Match),
		slog.Duration("lookup_timeout", cfg.Dataset.LookupTimeout),
		slog.Duration("verify_delay", cfg.Move.VerifyDelay),
		slog.Int("delete_retries", cfg.Move.DeleteRetries),
		slog.Duration("retry_interval", cfg.Move.RetryInterval),
		slog.String("heartbeat_path", cfg.Heartbeat.Path),
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("log_level", cfg.App.LogLevel.String()))
}

func (s *service) processor(opts ...processor.Option) *processor.Processor {
	cfg := s.cfg
	return processor.New(s.engine, s.store, processor.Options{
		ErrorFolder:    cfg.Watch.ErrorDir(),
		ExcludeMarkers: cfg.Watch.ExcludeMarkers,
		RouteTimeout:   cfg.Dataset.LookupTimeout,
		VerifyDelay:    cfg.Move.VerifyDelay,
		DeleteRetries:  cfg.Move.DeleteRetries,
		RetryInterval:  cfg.Move.RetryInterval,
	}, s.logger, opts...)
}

func (s *service) scanner(proc scanner.FileProcessor) *scanner.Scanner {
	cfg := s.cfg
	return scanner.New(proc, s.store, s.tracker, s.beat, scanner.Options{
		WatchDir:     cfg.Watch.Dir(),
		ErrorFolder:  cfg.Watch.ErrorDir(),
		PollInterval: cfg.Watch.PollInterval,
		SettleDelay:  cfg.Watch.SettleDelay,
		CreateGrace:  cfg.Watch.CreateGrace,
	}, s.logger)
}
