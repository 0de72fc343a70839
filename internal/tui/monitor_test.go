package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadekit/cascade/internal/events"
)

func TestParseSSE(t *testing.T) {
	body := strings.NewReader(
		"id: 1\nevent: execution.started\ndata: {\"id\":\"abc\"}\n\n" +
			": keep-alive\n\n" +
			"id: 2\nevent: execution.completed\ndata: {\"id\":\"abc\",\"status\":\"succeeded\"}\n\n")

	var got []events.Event
	for ev := range parseSSE(body) {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, events.TypeExecutionStarted, got[0].Type)
	assert.JSONEq(t, `{"id":"abc"}`, string(got[0].Data))
	assert.Equal(t, events.TypeExecutionCompleted, got[1].Type)
}

func TestHandleEventTracksExecutionLifecycle(t *testing.T) {
	m := NewMonitor("http://localhost", "key")

	m.handleEvent(events.Event{
		ID:   1,
		Type: events.TypeExecutionStarted,
		Data: []byte(`{"id":"abc","command":"--save","target":"panel","origin":"activation"}`),
	})
	require.Len(t, m.executions, 1)
	assert.Equal(t, "running", m.executions[0].Status)
	assert.Equal(t, "--save", m.executions[0].Command)

	m.handleEvent(events.Event{
		ID:   2,
		Type: events.TypeExecutionCompleted,
		Data: []byte(`{"id":"abc","status":"succeeded","duration":"12ms"}`),
	})
	assert.Equal(t, "succeeded", m.executions[0].Status)
	assert.Equal(t, "12ms", m.executions[0].Duration)
}

func TestHandleEventBoundsBuffers(t *testing.T) {
	m := NewMonitor("http://localhost", "key")
	for i := 0; i < maxExecutions+20; i++ {
		m.handleEvent(events.Event{
			Type: events.TypeExecutionStarted,
			Data: []byte(`{"id":"` + strings.Repeat("x", i%5+1) + `"}`),
		})
	}
	assert.LessOrEqual(t, len(m.executions), maxExecutions)
	assert.LessOrEqual(t, len(m.eventLog), maxEventLines)
}

func TestStatusSymbolCoversStatuses(t *testing.T) {
	for _, status := range []string{"queued", "running", "succeeded", "failed", "timed_out", "skipped", "other"} {
		assert.NotEmpty(t, statusSymbol(status))
	}
}
