// Package sse streams file processing outcomes to status dashboards as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/processor"
)

// Event types.
const (
	EventFileMoved     = "file.moved"
	EventFileFailed    = "file.failed"
	EventStatusUpdated = "status.updated"
)

const (
	clientBuffer = 64
	historySize  = 32
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// FileEvent is the payload of file.moved and file.failed events.
type FileEvent struct {
	File        string `json:"file"`
	State       string `json:"state"`
	Destination string `json:"destination,omitempty"`
	SinkPath    string `json:"sink_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Stats describes the broker's clients and deliveries.
type Stats struct {
	Clients int    `json:"clients"`
	LastID  uint64 `json:"last_id"`
	Dropped uint64 `json:"dropped"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithStatusThrottle emits status.updated at most once per d.
func WithStatusThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.statusMin = d
		}
	}
}

// WithStatus sets the source of the status.updated payload.
func WithStatus(fn func() heartbeat.Status) Option {
	return func(b *Broker) {
		b.status = fn
	}
}

// WithKeepAlive sets the interval of comment pings on idle streams.
// Zero disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		b.keepAlive = d
	}
}

type message struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

// Broker fans events out to SSE clients.
//
// One loop goroutine owns the client set, the event ids, the replay history
// and the status throttle; public methods talk to it over unbuffered
// channels, so a call returns once the loop has taken its event.
type Broker struct {
	statusMin time.Duration
	status    func() heartbeat.Status
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	resultCh      chan processor.Result
	statsCh       chan chan Stats

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its loop.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		statusMin:     2 * time.Second,
		keepAlive:     15 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event),
		resultCh:      make(chan processor.Result),
		statsCh:       make(chan chan Stats),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	history := make([]message, 0, historySize)
	var (
		lastID     uint64
		dropped    uint64
		lastStatus time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		lastID++
		msg := message{id: lastID, raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", lastID, event.Type, payload)}
		if len(history) == historySize {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, msg)

		for ch := range clients {
			select {
			case ch <- msg.raw:
			default:
				dropped++
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			if sub.lastID > 0 {
				for _, m := range history {
					if m.id <= sub.lastID {
						continue
					}
					select {
					case sub.ch <- m.raw:
					default:
						dropped++
					}
				}
			}
			clients[sub.ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case res := <-b.resultCh:
			broadcast(resultEvent(res))

			now := time.Now()
			if b.status != nil && now.Sub(lastStatus) >= b.statusMin {
				lastStatus = now
				broadcast(Event{Type: EventStatusUpdated, Data: b.status()})
			}

		case resp := <-b.statsCh:
			resp <- Stats{Clients: len(clients), LastID: lastID, Dropped: dropped}
		}
	}
}

func resultEvent(res processor.Result) Event {
	data := FileEvent{File: res.File.Name, State: string(res.State)}
	if res.Moved() {
		data.Destination = res.Outcome.Path()
		return Event{Type: EventFileMoved, Data: data}
	}
	data.SinkPath = res.SinkPath
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	return Event{Type: EventFileFailed, Data: data}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. Events with an id above lastID still held in
// the replay history are queued first; lastID 0 skips the replay.
func (b *Broker) Subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// Stats returns a snapshot of the broker counters. A closed broker reports
// zero values.
func (b *Broker) Stats() Stats {
	if b.closed.Load() {
		return Stats{}
	}

	resp := make(chan Stats, 1)
	select {
	case b.statsCh <- resp:
	case <-b.stopped:
		return Stats{}
	}

	select {
	case s := <-resp:
		return s
	case <-b.stopped:
		return Stats{}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return b.Stats().Clients
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishResult broadcasts a processed file, followed by a throttled
// status.updated event. It matches processor.EventCallback.
func (b *Broker) PublishResult(res processor.Result) {
	if b.closed.Load() {
		return
	}
	select {
	case b.resultCh <- res:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). Reconnecting
// clients resume after the id in their Last-Event-ID header.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(lastID)
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
