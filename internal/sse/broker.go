// Package sse implements a Server-Sent Events broker for live note
// repository updates.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// clientBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind than this starts losing events.
const clientBuffer = 64

// heartbeatInterval is how often idle subscribers receive a comment
// frame so that proxies do not reap quiet connections.
const heartbeatInterval = 25 * time.Second

// heartbeat is an SSE comment frame; EventSource clients ignore it.
var heartbeat = []byte(": keepalive\n\n")

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// noteEventTypes maps a lifecycle kind to its wire event type. Kinds
// outside this map are silently dropped.
var noteEventTypes = map[string]string{
	"created": "note.created",
	"updated": "note.updated",
	"deleted": "note.deleted",
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single goroutine owns the client set and executes
// operations submitted as closures over one channel. The FIFO queue means
// a Subscribe enqueued before a Publish is always applied before it, so
// callers never miss events published after Subscribe returns.
type Broker struct {
	ops    chan func(clients map[chan []byte]struct{})
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker creates a new SSE broker and starts its event loop.
func NewBroker() *Broker {
	b := &Broker{
		ops:  make(chan func(map[chan []byte]struct{}), 256),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.done)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	clients := make(map[chan []byte]struct{})
	for {
		select {
		case <-b.quit:
			for ch := range clients {
				close(ch)
			}
			return
		case <-ticker.C:
			for ch := range clients {
				select {
				case ch <- heartbeat:
				default:
				}
			}
		case op := <-b.ops:
			op(clients)
		}
	}
}

// submit queues op for the event loop. It reports false once the broker
// is shutting down.
func (b *Broker) submit(op func(map[chan []byte]struct{})) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the event loop and closes every subscriber channel. It is
// idempotent and returns once the loop has exited.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe adds a new client and returns its channel. The channel is
// closed on Unsubscribe or when the broker shuts down.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.submit(func(clients map[chan []byte]struct{}) {
		clients[ch] = struct{}{}
	}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.submit(func(clients map[chan []byte]struct{}) {
		if _, ok := clients[ch]; ok {
			delete(clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	reply := make(chan int, 1)
	if !b.submit(func(clients map[chan []byte]struct{}) {
		reply <- len(clients)
	}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends an event to all connected clients. Subscribers with full
// buffers miss the event rather than stall the loop.
func (b *Broker) Publish(event Event) {
	frame, err := encodeFrame(event)
	if err != nil {
		return
	}
	b.submit(func(clients map[chan []byte]struct{}) {
		for ch := range clients {
			select {
			case ch <- frame:
			default:
			}
		}
	})
}

// PublishNoteEvent publishes a note lifecycle change. kind is one of
// "created", "updated" or "deleted".
func (b *Broker) PublishNoteEvent(kind, id string) {
	eventType, ok := noteEventTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: eventType, Data: map[string]string{"id": id}})
}

// encodeFrame renders event as a wire-format SSE frame.
func encodeFrame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(event.Type)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-ch:
			if !open {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
