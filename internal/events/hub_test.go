package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(16)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypeExecutionStarted, map[string]string{"command": "--x"})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeExecutionStarted, ev.Type)
		assert.Contains(t, string(ev.Data), "--x")
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSnapshotSince(t *testing.T) {
	h := NewHub(16)
	h.Publish(TypeDiagnostic, nil)
	h.Publish(TypeDiagnostic, nil)
	h.Publish(TypeDiagnostic, nil)

	all := h.SnapshotSince(0)
	require.Len(t, all, 3)

	later := h.SnapshotSince(all[1].ID)
	require.Len(t, later, 1)
	assert.Equal(t, all[2].ID, later[0].ID)
}

func TestBufferLimit(t *testing.T) {
	h := NewHub(2)
	for i := 0; i < 5; i++ {
		h.Publish(TypeDiagnostic, nil)
	}
	snap := h.SnapshotSince(0)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(4), snap[0].ID)
	assert.Equal(t, int64(5), snap[1].ID)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(16)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Publish(TypeDiagnostic, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	h := NewHub(16)
	_, cancel := h.Subscribe()
	cancel()
	cancel()
}
