// Package processor runs one watched file through routing and relocation.
//
// A file moves Discovered → Routing → Moving → Done on success. Any failure
// after discovery goes straight to ErrorSinking, which parks the file in the
// error folder, and then to Done. Nothing is retried across states.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/storage"
)

// State is a step of the per-file state machine.
type State string

// Processing states.
const (
	StateDiscovered   State = "discovered"
	StateRouting      State = "routing"
	StateMoving       State = "moving"
	StateErrorSinking State = "error_sinking"
	StateDone         State = "done"
)

// Router resolves the destination of a file.
type Router interface {
	Route(ctx context.Context, path string) (models.Outcome, error)
}

// Options holds the folder and timing settings of a Processor.
type Options struct {
	ErrorFolder    string
	ExcludeMarkers []string
	// RouteTimeout bounds routing. A route still running at the deadline is
	// abandoned, not cancelled.
	RouteTimeout time.Duration
	// VerifyDelay is waited after a copy before checking the destination.
	VerifyDelay time.Duration
	// DeleteRetries is how many times the source is checked for absence
	// after deletion, RetryInterval apart.
	DeleteRetries int
	RetryInterval time.Duration
}

// Result reports what happened to one file.
type Result struct {
	File models.WatchedFile `json:"file"`
	// Processed is true when the file was acted upon, moved or sunk.
	Processed bool `json:"processed"`
	// State is the last state reached: Done when processed.
	State State `json:"state"`
	// Outcome is the resolved destination, zero when routing failed.
	Outcome models.Outcome `json:"outcome"`
	// SinkPath is where the file was parked after a failure.
	SinkPath string `json:"sink_path,omitempty"`
	Err      error  `json:"-"`
}

// Moved reports whether the file reached its resolved destination.
func (r Result) Moved() bool {
	return r.Processed && r.Err == nil
}

// EventCallback is called after every processed file.
type EventCallback func(Result)

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the clock used for error-sink names.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithCallback registers cb to receive every processed Result.
func WithCallback(cb EventCallback) Option {
	return func(p *Processor) {
		p.cb = cb
	}
}

// Processor drives files through the state machine. It is not safe for
// concurrent use; files are processed one at a time.
type Processor struct {
	router Router
	store  storage.Provider
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	cb     EventCallback
}

// New creates a Processor.
func New(router Router, store storage.Provider, opts Options, logger *slog.Logger, options ...Option) *Processor {
	p := &Processor{
		router: router,
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Process runs file through the state machine. Failures never escape: they
// are recorded in the Result and the file is parked in the error folder.
func (p *Processor) Process(ctx context.Context, file models.WatchedFile) Result {
	res := Result{File: file, State: StateDiscovered}

	if p.excluded(file.Name) {
		p.logger.Debug("processor: excluded", slog.String("file", file.Path))
		return res
	}
	if ok, err := p.store.Exists(file.Path); err != nil || !ok {
		p.logger.Debug("processor: file vanished before processing", slog.String("file", file.Path))
		return res
	}

	p.logger.Info("processor: file found to process", slog.String("file", file.Path))

	res.State = StateRouting
	out, err := p.route(ctx, file.Path)
	if err != nil && ctx.Err() != nil {
		// Shutting down: leave the file for the next run.
		res.Err = err
		return res
	}
	// From here on the file is moved or sunk even if ctx is cancelled, so a
	// shutdown never leaves copies behind.
	work := context.WithoutCancel(ctx)
	if err == nil {
		res.Outcome = out
		res.State = StateMoving
		err = p.deliver(work, file, out)
	}

	if err != nil {
		res.Err = err
		p.logFailure(file, res.State, err)
		res.State = StateErrorSinking
		sinkPath, sinkErr := p.sink(work, file)
		if sinkErr != nil {
			p.logger.Error("processor: move to error folder failed",
				slog.String("file", file.Path),
				slog.String("error", sinkErr.Error()))
		} else {
			res.SinkPath = sinkPath
		}
	} else {
		p.logger.Info("processor: file moved",
			slog.String("file", file.Path),
			slog.String("destination", out.Path()))
	}

	res.State = StateDone
	res.Processed = true
	if p.cb != nil {
		p.cb(res)
	}
	return res
}

func (p *Processor) excluded(name string) bool {
	for _, marker := range p.opts.ExcludeMarkers {
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

type routed struct {
	out models.Outcome
	err error
}

// route runs the router on its own goroutine and waits at most RouteTimeout.
// The goroutine owns its cleanup; on timeout it is left to finish alone.
func (p *Processor) route(ctx context.Context, path string) (models.Outcome, error) {
	ch := make(chan routed, 1)
	go func() {
		out, err := p.router.Route(ctx, path)
		ch <- routed{out: out, err: err}
	}()

	timer := time.NewTimer(p.opts.RouteTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-timer.C:
		return models.Outcome{}, fmt.Errorf("%w: reading the reference dataset took longer than %s", apperr.ErrTimeout, p.opts.RouteTimeout)
	case <-ctx.Done():
		return models.Outcome{}, ctx.Err()
	}
}

func (p *Processor) deliver(ctx context.Context, file models.WatchedFile, out models.Outcome) error {
	if !p.store.IsDir(out.Folder) {
		return fmt.Errorf("%w: directory %s does not exist", apperr.ErrConfiguration, out.Folder)
	}
	return p.move(ctx, file.Path, out.Folder, out.Filename)
}

// sink parks the file in the error folder, keeping its name unless that
// would overwrite an earlier failure.
func (p *Processor) sink(ctx context.Context, file models.WatchedFile) (string, error) {
	name := file.Name
	taken, err := p.store.Exists(filepath.Join(p.opts.ErrorFolder, name))
	if err != nil {
		return "", err
	}
	if taken {
		name = SinkName(file.Name, p.now())
	}
	if err := p.move(ctx, file.Path, p.opts.ErrorFolder, name); err != nil {
		return "", err
	}
	return filepath.Join(p.opts.ErrorFolder, name), nil
}

// SinkName inserts a second-resolution timestamp before the extension.
func SinkName(name string, at time.Time) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + at.Format("060102_150405") + ext
}

func (p *Processor) logFailure(file models.WatchedFile, state State, err error) {
	if apperr.IsBusinessRule(err) {
		p.logger.Error(err.Error(), slog.String("file", file.Name))
		return
	}
	attrs := []any{
		slog.String("file", file.Path),
		slog.String("state", string(state)),
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
	}
	if cause, wrapped := rootCause(err); wrapped {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	p.logger.Error("processor: file failed", attrs...)
}

func rootCause(err error) (error, bool) {
	wrapped := false
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err, wrapped
		}
		err, wrapped = next, true
	}
}
