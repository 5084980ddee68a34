package scanner

import (
	"context"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch nudges Run whenever a file is created or written directly inside
// the watched directory, so arrivals are picked up before the next poll.
// Polling stays the source of truth: events are never processed here, and a
// watcher that cannot start only costs latency.
func (s *Scanner) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(s.opts.WatchDir); err != nil {
		s.logger.Warn("watcher: add dir failed, relying on polling",
			slog.String("dir", s.opts.WatchDir),
			slog.String("error", err.Error()))
		<-ctx.Done()
		return nil
	}

	s.logger.Info("watcher: started", slog.String("dir", s.opts.WatchDir))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr != nil || !info.Mode().IsRegular() {
				continue
			}
			s.logger.Debug("watcher: file arrived", slog.String("path", ev.Name))
			s.Nudge()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
