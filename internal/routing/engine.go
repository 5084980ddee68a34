// Package routing decides where a watched file goes: it keys the filename,
// looks the key up in the reference dataset and applies the row's rename rule.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/models"
)

// Finder looks up the dataset row for a lookup pattern. filename is the
// original, untokenized name used to disambiguate several matches.
type Finder interface {
	Find(ctx context.Context, pattern, filename string) (models.ReferenceRow, error)
}

// Engine drives a single file through lookup and rename resolution.
type Engine struct {
	finder   Finder
	resolver *Resolver
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(finder Finder, resolver *Resolver, logger *slog.Logger) *Engine {
	return &Engine{finder: finder, resolver: resolver, logger: logger}
}

// Plan returns the lookup key for a filename without consulting the dataset.
func (e *Engine) Plan(filename string) Key {
	return KeyFor(filename)
}

// Route resolves the destination for the file at path.
func (e *Engine) Route(ctx context.Context, path string) (models.Outcome, error) {
	key := KeyFor(filepath.Base(path))
	if key.Pattern == "" {
		return models.Outcome{}, fmt.Errorf("%w: failed to derive a lookup key for %q", apperr.ErrConfiguration, path)
	}

	e.logger.Info("routing: keyed file",
		slog.String("file", key.Filename),
		slog.String("token", key.Token),
		slog.String("pattern", key.Pattern))

	row, err := e.finder.Find(ctx, key.Pattern, key.Filename)
	if err != nil {
		return models.Outcome{}, err
	}

	e.logger.Info("routing: matched row",
		slog.String("file", key.Filename),
		slog.String("row_filename", row.Filename),
		slog.String("output_folder", row.OutputFolder),
		slog.String("rename_template", row.RenameTemplate),
		slog.String("extension_override", row.ExtensionOverride))

	return e.resolver.Resolve(row, key.Token, key.Base, key.Ext)
}
