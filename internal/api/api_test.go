package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/ferry/internal/apperr"
	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/routing"
	"github.com/starford/ferry/internal/sse"
)

type stubRouter struct {
	out models.Outcome
	err error
}

func (s stubRouter) Plan(filename string) routing.Key { return routing.KeyFor(filename) }

func (s stubRouter) Route(ctx context.Context, _ string) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.Outcome{}, err
	}
	return s.out, s.err
}

type countingNudger struct{ n atomic.Int32 }

func (c *countingNudger) Nudge() { c.n.Add(1) }

func testEnv(t *testing.T, r stubRouter, token string) (http.Handler, *heartbeat.Tracker, *countingNudger) {
	t.Helper()
	tracker := heartbeat.NewTracker("/data/in")
	nudger := &countingNudger{}
	h := NewHandler(tracker, r, nudger, time.Second)
	return NewRouter(h, token != "", token, nil), tracker, nudger
}

func do(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	router, tracker, _ := testEnv(t, stubRouter{}, "")
	tracker.SetError("can't find main folder: /data/in")

	w := do(router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got heartbeat.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.WatchedPath != "/data/in" {
		t.Errorf("watched_path = %q", got.WatchedPath)
	}
	if got.CurrentError != "can't find main folder: /data/in" {
		t.Errorf("current_error = %q", got.CurrentError)
	}
	if !got.LastSuccess.IsZero() {
		t.Errorf("last_success = %v, want zero", got.LastSuccess)
	}
}

func TestRoute_Found(t *testing.T) {
	out := models.Outcome{Folder: "/archive/reports", Filename: "2024_Archived.pdf"}
	router, _, _ := testEnv(t, stubRouter{out: out}, "")

	w := do(router, http.MethodGet, "/route?file=Report2024.pdf", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Key.Pattern != "Report%.pdf" {
		t.Errorf("pattern = %q, want Report%%.pdf", got.Key.Pattern)
	}
	if got.Outcome == nil || *got.Outcome != out {
		t.Errorf("outcome = %+v, want %+v", got.Outcome, out)
	}
	if got.Error != "" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestRoute_StripsDirectories(t *testing.T) {
	router, _, _ := testEnv(t, stubRouter{}, "")

	w := do(router, http.MethodGet, "/route?file=../../etc/Report2024.pdf", "")
	var got RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Key.Filename != "Report2024.pdf" {
		t.Errorf("filename = %q", got.Key.Filename)
	}
}

func TestRoute_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: no match", apperr.ErrNotFound), http.StatusUnprocessableEntity},
		{"ambiguous", fmt.Errorf("%w: 2 matches", apperr.ErrAmbiguousMatch), http.StatusUnprocessableEntity},
		{"configuration", fmt.Errorf("%w: blank folder", apperr.ErrConfiguration), http.StatusUnprocessableEntity},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := testEnv(t, stubRouter{err: tt.err}, "")
			w := do(router, http.MethodGet, "/route?file=Report2024.pdf", "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			var got RouteResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Error != tt.err.Error() {
				t.Errorf("error = %q, want %q", got.Error, tt.err.Error())
			}
			if got.Outcome != nil {
				t.Errorf("outcome = %+v, want nil", got.Outcome)
			}
		})
	}
}

func TestRoute_MissingFile(t *testing.T) {
	router, _, _ := testEnv(t, stubRouter{}, "")
	w := do(router, http.MethodGet, "/route", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScan(t *testing.T) {
	router, _, nudger := testEnv(t, stubRouter{}, "")
	w := do(router, http.MethodPost, "/scan", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if got := nudger.n.Load(); got != 1 {
		t.Errorf("nudges = %d, want 1", got)
	}
}

func TestAuth_TokenMode(t *testing.T) {
	router, _, _ := testEnv(t, stubRouter{}, "secret")

	if w := do(router, http.MethodGet, "/status", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := do(router, http.MethodGet, "/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
	if w := do(router, http.MethodGet, "/status", "secret"); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestEvents_Mounted(t *testing.T) {
	tracker := heartbeat.NewTracker("/data/in")
	h := NewHandler(tracker, stubRouter{}, &countingNudger{}, time.Second)
	sse := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewRouter(h, false, "", sse)

	if w := do(router, http.MethodGet, "/events", ""); w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}

func TestEventsStats(t *testing.T) {
	broker := sse.NewBroker(sse.WithKeepAlive(0))
	defer broker.Close()
	ch := broker.Subscribe(0)
	defer broker.Unsubscribe(ch)

	h := NewHandler(heartbeat.NewTracker("/data/in"), stubRouter{}, &countingNudger{}, time.Second)
	router := NewRouter(h, false, "", broker)

	w := do(router, http.MethodGet, "/events/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got sse.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Clients != 1 {
		t.Errorf("clients = %d, want 1", got.Clients)
	}
}
