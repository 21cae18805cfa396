// Package sse implements a Server-Sent Events broker that pushes outline
// refresh hints to connected views.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	NoteCreated    = "note.created"
	NoteUpdated    = "note.updated"
	NoteDeleted    = "note.deleted"
	OutlineReorder = "outline.reordered"
	OutlineChanged = "outline.changed"
)

// Event represents an SSE event to broadcast. An empty Workspace reaches every
// client; otherwise only clients subscribed to that workspace (or to all).
type Event struct {
	Type      string `json:"type"`
	Workspace string `json:"-"`
	Data      any    `json:"data"`
}

type noteEventReq struct {
	kind string
	ws   string
	id   string
}

type subscription struct {
	ch chan []byte
	ws string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set and the per-workspace
// outline.changed throttle; public methods talk to it over channels.
type Broker struct {
	changedMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits outline.changed at most once per
// throttle interval for each workspace.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		changedMin:    throttle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastChanged := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, ws := range clients {
			if ws != "" && event.Workspace != "" && ws != event.Workspace {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	changed := func(ws string) {
		now := time.Now()
		if now.Sub(lastChanged[ws]) < b.changedMin {
			return
		}
		lastChanged[ws] = now
		broadcast(Event{Type: OutlineChanged, Workspace: ws, Data: map[string]string{"workspace": ws}})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.ws

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			if event.Type == OutlineChanged {
				changed(event.Workspace)
				continue
			}
			broadcast(event)

		case req := <-b.noteEventCh:
			data := map[string]string{"workspace": req.ws, "id": req.id}
			switch req.kind {
			case "created":
				broadcast(Event{Type: NoteCreated, Workspace: req.ws, Data: data})
			case "updated":
				broadcast(Event{Type: NoteUpdated, Workspace: req.ws, Data: data})
			case "deleted":
				broadcast(Event{Type: NoteDeleted, Workspace: req.ws, Data: data})
			}
			changed(req.ws)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for ws ("" for every workspace) and returns its channel.
func (b *Broker) Subscribe(ws string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, ws: ws}:
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

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to matching clients. outline.changed events go
// through the throttle.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a record change and a throttled outline.changed.
// kind is one of "created", "updated", "deleted".
func (b *Broker) PublishNoteEvent(kind, ws, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, ws: ws, id: id}:
	case <-b.stopped:
	}
}

// PublishChanged emits a throttled outline.changed hint for ws, or for every
// client when ws is empty.
func (b *Broker) PublishChanged(ws string) {
	b.Publish(Event{Type: OutlineChanged, Workspace: ws})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events?workspace=...).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("workspace"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
