// Package events is the runtime's in-memory pub/sub: execution progress
// and diagnostics fan out to the SSE endpoint and the watch TUI.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the runtime.
const (
	TypeExecutionStarted   = "execution.started"
	TypeExecutionCompleted = "execution.completed"
	TypeDiagnostic         = "diagnostic"
	TypeQueueReset         = "queue.reset"
)

// Event is one published record with a JSON payload.
type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"`
}

// Hub is an in-memory pub/sub with a bounded replay buffer so late
// subscribers can catch up.
type Hub struct {
	nextID atomic.Int64

	mu     sync.Mutex
	buffer []Event
	limit  int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a hub buffering up to limit recent events.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 256
	}
	return &Hub{
		limit: limit,
		subs:  make(map[int]chan Event),
	}
}

// Publish marshals data to JSON and fans the event out. Slow subscribers
// are skipped rather than blocking the publisher.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	h.buffer = append(h.buffer, ev)
	if len(h.buffer) > h.limit {
		h.buffer = h.buffer[len(h.buffer)-h.limit:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a receive channel and a cancel func. Cancel closes
// the channel and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
// lastID 0 returns the full buffer.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.buffer))
	for _, ev := range h.buffer {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}
