package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ferry/internal/sse"
)

// StreamStats is implemented by event stream handlers that count clients.
type StreamStats interface {
	Stats() sse.Stats
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group,
// with GET /events/stats when it implements StreamStats.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/status", h.Status)
	r.Get("/route", h.Route)
	r.Post("/scan", h.Scan)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
		if st, ok := sseHandler.(StreamStats); ok {
			r.Get("/events/stats", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, st.Stats())
			})
		}
	}

	return r
}
