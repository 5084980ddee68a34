// Package heartbeat keeps the service status and renders it to the
// heartbeat file external monitoring polls.
package heartbeat

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/ferry/internal/storage"
)

// TimeFormat is the timestamp layout used in the heartbeat file.
const TimeFormat = "2006-01-02 15:04"

// Never stands in for the last-success time before any file was handled.
const Never = "<no files processed yet>"

// Status is one heartbeat snapshot.
type Status struct {
	Now          time.Time `json:"now"`
	LastSuccess  time.Time `json:"last_success,omitzero"`
	WatchedPath  string    `json:"watched_path"`
	CurrentError string    `json:"current_error,omitempty"`
}

// Render formats the snapshot as the plain-text heartbeat file.
func (s Status) Render() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Heartbeat: %s\n", s.Now.Format(TimeFormat))
	last := Never
	if !s.LastSuccess.IsZero() {
		last = s.LastSuccess.Format(TimeFormat)
	}
	fmt.Fprintf(&b, "Last time handling files: %s\n", last)
	fmt.Fprintf(&b, "Directory watched: %s\n", s.WatchedPath)
	if s.CurrentError != "" {
		fmt.Fprintf(&b, "Current error: %s\n", s.CurrentError)
	}
	return []byte(b.String())
}

// Tracker holds the mutable status shared between the scan loop and the
// status readers (HTTP, MCP).
type Tracker struct {
	mu          sync.RWMutex
	watched     string
	lastSuccess time.Time
	lastTick    time.Time
	currentErr  string
}

// NewTracker creates a Tracker for the watched directory.
func NewTracker(watched string) *Tracker {
	return &Tracker{watched: watched}
}

// MarkProcessed records that files were handled at t.
func (t *Tracker) MarkProcessed(at time.Time) {
	t.mu.Lock()
	t.lastSuccess = at
	t.mu.Unlock()
}

// SetError replaces the current error; an empty msg clears it.
func (t *Tracker) SetError(msg string) {
	t.mu.Lock()
	t.currentErr = msg
	t.mu.Unlock()
}

// Snapshot returns the status as of now and records now as the last tick.
func (t *Tracker) Snapshot(now time.Time) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTick = now
	return Status{
		Now:          now,
		LastSuccess:  t.lastSuccess,
		WatchedPath:  t.watched,
		CurrentError: t.currentErr,
	}
}

// Current returns the status as of the last tick without advancing it.
func (t *Tracker) Current() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		Now:          t.lastTick,
		LastSuccess:  t.lastSuccess,
		WatchedPath:  t.watched,
		CurrentError: t.currentErr,
	}
}

// Writer rewrites the heartbeat file.
type Writer struct {
	path   string
	store  storage.Provider
	logger *slog.Logger
}

// NewWriter creates a Writer for the file at path.
func NewWriter(path string, store storage.Provider, logger *slog.Logger) *Writer {
	return &Writer{path: path, store: store, logger: logger}
}

// Write replaces the heartbeat file with s.
func (w *Writer) Write(s Status) error {
	if err := w.store.Write(w.path, s.Render()); err != nil {
		return fmt.Errorf("heartbeat: write %s: %w", w.path, err)
	}
	w.logger.Debug("heartbeat: written", slog.String("path", w.path))
	return nil
}

// Read returns the heartbeat file as last written.
func (w *Writer) Read() ([]byte, error) {
	data, err := w.store.Read(w.path)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: read %s: %w", w.path, err)
	}
	return data, nil
}
