package routing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/models"
)

// placeholderRe finds the part of a rename template that receives the token
// or today's date: XXX, yyyy-mm-dd style runs, or the literal (*).
var placeholderRe = regexp.MustCompile(`[Xx]{3,}|[YyMmDd-]{4,}|\(\*\)`)

// Resolver turns a matched dataset row into the destination of a file.
type Resolver struct {
	now    func() time.Time
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the clock used for date placeholders.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the output folder and final filename for a file whose
// stem is base and extension is ext. token is empty when the filename held none.
func (r *Resolver) Resolve(row models.ReferenceRow, token, base, ext string) (models.Outcome, error) {
	folder := strings.TrimSpace(row.OutputFolder)
	if folder == "" {
		return models.Outcome{}, fmt.Errorf("%w: output folder is missing in reference dataset", apperr.ErrConfiguration)
	}

	name, err := r.baseName(strings.TrimSpace(row.RenameTemplate), token, base)
	if err != nil {
		return models.Outcome{}, err
	}
	if old := filepath.Ext(name); old != "" {
		name = strings.TrimSuffix(name, old)
	}

	if override := strings.TrimSpace(row.ExtensionOverride); override != "" {
		if !strings.HasPrefix(override, ".") {
			override = "." + override
		}
		ext = override
	}

	out := models.Outcome{Folder: folder, Filename: name + ext}
	r.logger.Debug("routing: resolved",
		slog.String("folder", out.Folder),
		slog.String("filename", out.Filename))
	return out, nil
}

// baseName returns the untokenized original base name when template is blank.
func (r *Resolver) baseName(template, token, base string) (string, error) {
	if template == "" {
		return base, nil
	}

	placeholder := placeholderRe.FindString(template)
	switch {
	case placeholder == "":
		return template, nil
	case token != "":
		return strings.Replace(template, placeholder, token, 1), nil
	case strings.Contains(placeholder, "yyyy"):
		return stampDate(template, r.now(), "yyyy", "mm", "dd"), nil
	case strings.Contains(placeholder, "YYYY"):
		return stampDate(template, r.now(), "YYYY", "MM", "DD"), nil
	default:
		return "", fmt.Errorf("%w: no token or date to substitute into %q", apperr.ErrConfiguration, template)
	}
}

func stampDate(template string, now time.Time, year, month, day string) string {
	return strings.NewReplacer(
		year, now.Format("2006"),
		month, now.Format("01"),
		day, now.Format("02"),
	).Replace(template)
}
