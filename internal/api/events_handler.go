package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cascadekit/cascade/internal/events"
)

const keepAliveInterval = 15 * time.Second

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(b []byte) bool {
		if _, err := w.Write(b); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Catch a reconnecting client up from the replay buffer in one
	// write before going live.
	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	var replay bytes.Buffer
	for _, ev := range s.deps.Hub.SnapshotSince(lastID) {
		replay.Write(sseFrame(ev))
	}
	if !send(replay.Bytes()) {
		return
	}

	live, cancel := s.deps.Hub.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-live:
			if !open || !send(sseFrame(ev)) {
				return
			}
		case <-keepAlive.C:
			// Comment line; keeps idle proxies from dropping us.
			if !send([]byte(": keep-alive\n\n")) {
				return
			}
		}
	}
}

// sseFrame renders one event in wire form: an id line, the event name,
// and a single data line (payloads are one-line JSON).
func sseFrame(ev events.Event) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "id: %d\n", ev.ID)
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	fmt.Fprintf(&b, "data: %s\n\n", ev.Data)
	return b.Bytes()
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
