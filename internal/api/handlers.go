package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/routing"
)

// StatusSource exposes the current service status.
type StatusSource interface {
	Current() heartbeat.Status
}

// Router resolves destinations without moving anything.
type Router interface {
	Plan(filename string) routing.Key
	Route(ctx context.Context, path string) (models.Outcome, error)
}

// Nudger schedules an early scan.
type Nudger interface {
	Nudge()
}

// Handler holds the status API dependencies.
type Handler struct {
	status       StatusSource
	router       Router
	scanner      Nudger
	routeTimeout time.Duration
}

// NewHandler creates a Handler. routeTimeout bounds dry-run lookups.
func NewHandler(status StatusSource, router Router, scanner Nudger, routeTimeout time.Duration) *Handler {
	return &Handler{status: status, router: router, scanner: scanner, routeTimeout: routeTimeout}
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Current())
}

// Route handles GET /route?file=NAME: it reports the lookup key and the
// destination NAME would get, without touching any file.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(strings.TrimSpace(r.URL.Query().Get("file")))
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeJSON(w, http.StatusBadRequest, errorBody("file query parameter is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.routeTimeout)
	defer cancel()

	resp := RouteResponse{Key: h.router.Plan(name)}
	out, err := h.router.Route(ctx, name)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, routeStatus(err), resp)
		return
	}
	resp.Outcome = &out
	writeJSON(w, http.StatusOK, resp)
}

// Scan handles POST /scan.
func (h *Handler) Scan(w http.ResponseWriter, _ *http.Request) {
	h.scanner.Nudge()
	writeJSON(w, http.StatusAccepted, ScanResponse{Status: "scheduled"})
}

func routeStatus(err error) int {
	switch {
	case apperr.IsBusinessRule(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
