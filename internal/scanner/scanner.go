// Package scanner polls the watched directory and feeds each file to the
// processor, one at a time, rewriting the heartbeat after every tick.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/processor"
	"github.com/starford/ferry/internal/storage"
)

// FileProcessor handles one watched file.
type FileProcessor interface {
	Process(ctx context.Context, file models.WatchedFile) processor.Result
}

// HeartbeatWriter persists a heartbeat snapshot.
type HeartbeatWriter interface {
	Write(s heartbeat.Status) error
}

// Options holds the watched folders and tick timings.
type Options struct {
	WatchDir    string
	ErrorFolder string
	// PollInterval is the time between ticks of Run.
	PollInterval time.Duration
	// SettleDelay is waited after listing the directory so files still
	// being written get a chance to finish.
	SettleDelay time.Duration
	// CreateGrace is waited after creating the error folder before
	// checking that it exists, for slow network shares.
	CreateGrace time.Duration
}

// Report summarises one tick.
type Report struct {
	Files     int `json:"files"`
	Processed int `json:"processed"`
	Moved     int `json:"moved"`
	Failed    int `json:"failed"`
}

// Scanner runs ticks over the watched directory.
type Scanner struct {
	proc    FileProcessor
	store   storage.Provider
	tracker *heartbeat.Tracker
	beat    HeartbeatWriter
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	nudge   chan struct{}
}

// New creates a Scanner.
func New(proc FileProcessor, store storage.Provider, tracker *heartbeat.Tracker, beat HeartbeatWriter, opts Options, logger *slog.Logger) *Scanner {
	return &Scanner{
		proc:    proc,
		store:   store,
		tracker: tracker,
		beat:    beat,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		nudge:   make(chan struct{}, 1),
	}
}

// Run ticks immediately, then every PollInterval or whenever Nudge is
// called, until ctx is cancelled. A failed tick never stops the loop.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.logger.Info("scanner: started",
		slog.String("dir", s.opts.WatchDir),
		slog.Duration("poll_interval", s.opts.PollInterval))

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scanner: tick failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scanner: stopped")
			return nil
		case <-ticker.C:
		case <-s.nudge:
		}
	}
}

// Nudge asks Run for an early tick. Calls made while one is pending coalesce.
func (s *Scanner) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Tick validates the folders, processes every file present at the start of
// the tick and writes the heartbeat, also when the tick fails.
func (s *Scanner) Tick(ctx context.Context) (Report, error) {
	var report Report
	defer s.writeHeartbeat()

	if err := s.validateFolders(ctx); err != nil {
		s.tracker.SetError(err.Error())
		return report, err
	}
	s.tracker.SetError("")

	files, err := s.store.List(s.opts.WatchDir)
	if err != nil {
		s.tracker.SetError(err.Error())
		return report, err
	}
	report.Files = len(files)
	if len(files) == 0 {
		return report, nil
	}

	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return report, err
	}

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		res := s.proc.Process(ctx, f)
		if !res.Processed {
			continue
		}
		report.Processed++
		if res.Moved() {
			report.Moved++
		} else {
			report.Failed++
			s.tracker.SetError(res.Err.Error())
		}
	}

	if report.Processed > 0 {
		s.tracker.MarkProcessed(s.now())
		s.logger.Info("scanner: tick done",
			slog.Int("files", report.Files),
			slog.Int("moved", report.Moved),
			slog.Int("failed", report.Failed))
	}
	return report, ctx.Err()
}

func (s *Scanner) validateFolders(ctx context.Context) error {
	if !s.store.IsDir(s.opts.WatchDir) {
		return fmt.Errorf("can't find main folder: %s", s.opts.WatchDir)
	}
	if s.store.IsDir(s.opts.ErrorFolder) {
		return nil
	}

	if err := s.store.MkdirAll(s.opts.ErrorFolder); err != nil {
		s.logger.Warn("scanner: create error folder failed", slog.String("error", err.Error()))
	}
	if err := sleep(ctx, s.opts.CreateGrace); err != nil {
		return err
	}
	if !s.store.IsDir(s.opts.ErrorFolder) {
		return fmt.Errorf("can't find or create error folder: %s", s.opts.ErrorFolder)
	}
	return nil
}

func (s *Scanner) writeHeartbeat() {
	if err := s.beat.Write(s.tracker.Snapshot(s.now())); err != nil {
		s.logger.Error("scanner: heartbeat failed", slog.String("error", err.Error()))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
