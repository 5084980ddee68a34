// Package dataset looks up routing rows in the reference spreadsheet.
//
// Every lookup works on a private copy of the workbook so the original is
// never held open while an operator edits it. The copy is loaded into an
// in-memory SQLite table and filtered with LIKE: the '%' of a lookup pattern
// matches a concrete name in the match column as well as a cell holding the
// same wildcarded form.
package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/models"
)

// Columns names the sheet columns the lookup reads.
type Columns struct {
	Match             string `yaml:"match"`
	Filename          string `yaml:"filename"`
	OutputFolder      string `yaml:"output_folder"`
	RenameTemplate    string `yaml:"rename_template"`
	ExtensionOverride string `yaml:"extension_override"`
}

// DefaultColumns returns the column headers of the standard routing workbook.
func DefaultColumns() Columns {
	return Columns{
		Match:             "Filename pattern",
		Filename:          "Filename",
		OutputFolder:      "Output folder",
		RenameTemplate:    "Name of file after copy",
		ExtensionOverride: "Change filetype to",
	}
}

// Options configures a Lookup.
type Options struct {
	Path    string
	Sheet   string
	Columns Columns
	// TempDir receives the working copies. Empty means os.TempDir().
	TempDir string
}

// Lookup queries the reference dataset.
type Lookup struct {
	opts   Options
	logger *slog.Logger
	// copied, when set, is called with each working copy path. Tests use it
	// to hold a lookup open.
	copied func(path string)
}

// New creates a Lookup.
func New(opts Options, logger *slog.Logger) *Lookup {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Lookup{opts: opts, logger: logger}
}

// Find returns the single row matching pattern. filename is the original
// name of the file and breaks ties between several matching rows.
func (l *Lookup) Find(ctx context.Context, pattern, filename string) (models.ReferenceRow, error) {
	rows, err := l.Query(ctx, pattern)
	if err != nil {
		return models.ReferenceRow{}, err
	}
	return Select(rows, filename)
}

// Query returns every row whose match cell is LIKE pattern.
func (l *Lookup) Query(ctx context.Context, pattern string) ([]models.ReferenceRow, error) {
	working, err := l.workingCopy()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(working); rmErr != nil && !os.IsNotExist(rmErr) {
			l.logger.Warn("dataset: remove working copy failed",
				slog.String("path", working),
				slog.String("error", rmErr.Error()))
		}
	}()
	if l.copied != nil {
		l.copied(working)
	}

	sheet, err := readSheet(working, l.opts.Sheet)
	if err != nil {
		return nil, err
	}
	if len(sheet) == 0 {
		return nil, fmt.Errorf("%w: sheet %q of %s is empty", apperr.ErrConfiguration, l.opts.Sheet, filepath.Base(l.opts.Path))
	}

	h, err := parseHeader(sheet[0], l.opts.Columns)
	if err != nil {
		return nil, err
	}

	body := sheet[1:]
	rows := make([]models.ReferenceRow, len(body))
	matches := make([]string, len(body))
	for i, r := range body {
		matches[i] = cell(r, h.match)
		rows[i] = models.ReferenceRow{
			Filename:          cell(r, h.filename),
			OutputFolder:      cell(r, h.outputFolder),
			RenameTemplate:    cell(r, h.renameTemplate),
			ExtensionOverride: cell(r, h.extensionOverride),
		}
	}

	t, err := openTable(ctx, rows, matches)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	out, err := t.like(ctx, pattern)
	if err != nil {
		return nil, err
	}
	l.logger.Info("dataset: rows extracted",
		slog.String("pattern", pattern),
		slog.Int("rows", len(out)))
	return out, nil
}

// workingCopy copies the dataset to a name unique to this call, so a lookup
// abandoned by a timed-out caller never collides with the next one.
func (l *Lookup) workingCopy() (string, error) {
	src, err := os.Open(l.opts.Path)
	if err != nil {
		return "", fmt.Errorf("dataset: open %s: %w", l.opts.Path, err)
	}
	defer src.Close()

	name := filepath.Join(l.opts.TempDir, "TempCopy_"+uuid.NewString()+"_"+filepath.Base(l.opts.Path))
	dst, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("dataset: create working copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("dataset: copy %s: %w", l.opts.Path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("dataset: close working copy: %w", err)
	}
	return name, nil
}

// Select picks one row out of the LIKE matches. With several candidates the
// row whose trimmed Filename has the same length as filename wins, provided
// it is the only one.
func Select(rows []models.ReferenceRow, filename string) (models.ReferenceRow, error) {
	switch len(rows) {
	case 0:
		return models.ReferenceRow{}, fmt.Errorf("%w: no match for file %s in reference dataset", apperr.ErrNotFound, filename)
	case 1:
		return rows[0], nil
	}

	want := utf8.RuneCountInString(filename)
	pick := -1
	for i, r := range rows {
		if utf8.RuneCountInString(strings.TrimSpace(r.Filename)) != want {
			continue
		}
		if pick >= 0 {
			pick = -1
			break
		}
		pick = i
	}
	if pick < 0 {
		return models.ReferenceRow{}, fmt.Errorf("%w: %d possible matches found for file %s, give the file a more unique name",
			apperr.ErrAmbiguousMatch, len(rows), filename)
	}
	return rows[pick], nil
}
