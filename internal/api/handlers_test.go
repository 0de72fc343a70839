package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadekit/cascade/internal/api/mocks"
	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/dispatch"
	"github.com/cascadekit/cascade/internal/events"
	"github.com/cascadekit/cascade/internal/journal"
	"github.com/cascadekit/cascade/internal/log"
	"github.com/cascadekit/cascade/internal/node"
	"github.com/cascadekit/cascade/internal/pipeline"
	"github.com/cascadekit/cascade/internal/queue"
	"github.com/cascadekit/cascade/internal/state"
)

const testKey = "test-api-key"

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	m.Run()
}

type testRig struct {
	server    *httptest.Server
	registry  *command.Registry
	states    *state.Store
	doc       *node.Document
	queue     *queue.Queue
	hub       *events.Hub
	journal   *journal.Journal
	templates *pipeline.Store
	disp      *dispatch.Dispatcher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	j, err := journal.Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	rig := &testRig{
		registry:  command.NewRegistry(nil),
		states:    state.NewStore(),
		doc:       node.NewDocument(),
		queue:     queue.New(0),
		hub:       events.NewHub(0),
		journal:   j,
		templates: pipeline.NewStore(),
	}
	rig.disp = dispatch.New(dispatch.Options{
		Registry: rig.registry,
		States:   rig.states,
		Document: rig.doc,
		Queue:    rig.queue,
		Journal:  j,
		Hub:      rig.hub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rig.queue.Start(ctx)

	s := New(Config{APIKey: testKey}, Deps{
		Executor:  rig.disp,
		Registry:  rig.registry,
		States:    rig.states,
		Templates: rig.templates,
		Journal:   j,
		Hub:       rig.hub,
	}, log.Get())

	rig.server = httptest.NewServer(s.routes())
	t.Cleanup(rig.server.Close)
	return rig
}

func (rig *testRig) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, rig.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthzUnauthenticated(t *testing.T) {
	rig := newTestRig(t)

	resp, err := http.Get(rig.server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
}

func TestAuthRequired(t *testing.T) {
	rig := newTestRig(t)

	resp, err := http.Get(rig.server.URL + "/v1/registry")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, rig.server.URL+"/v1/registry", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidateAPIKey(t *testing.T) {
	assert.True(t, ValidateAPIKey("secret", "secret"))
	assert.False(t, ValidateAPIKey("secret", "other"))
	assert.False(t, ValidateAPIKey("", "secret"))
	assert.False(t, ValidateAPIKey("secret", ""))
}

func TestExecuteWait(t *testing.T) {
	rig := newTestRig(t)
	rig.doc.Root().AppendChild(node.New("div", "panel", nil))
	require.NoError(t, rig.registry.Register("--ping", func(context.Context, *command.Invocation) error {
		return nil
	}))

	resp := rig.request(t, http.MethodPost, "/v1/execute", ExecuteRequest{
		Command: "--ping", Target: "panel", Wait: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[ExecuteResponse](t, resp)
	assert.Equal(t, string(queue.StatusSucceeded), out.Status)
	assert.Empty(t, out.Error)
}

func TestExecuteAsyncAccepted(t *testing.T) {
	rig := newTestRig(t)
	rig.doc.Root().AppendChild(node.New("div", "panel", nil))
	require.NoError(t, rig.registry.Register("--ping", func(context.Context, *command.Invocation) error {
		return nil
	}))

	resp := rig.request(t, http.MethodPost, "/v1/execute", ExecuteRequest{
		Command: "--ping", Target: "panel",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	rig := newTestRig(t)
	rig.doc.Root().AppendChild(node.New("div", "panel", nil))
	require.NoError(t, rig.registry.Register("--tabs:select", func(context.Context, *command.Invocation) error {
		return nil
	}))

	resp := rig.request(t, http.MethodPost, "/v1/execute", ExecuteRequest{
		Command: "--tabs:selct", Target: "panel", Wait: true,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decode[ErrorResponse](t, resp)
	assert.Contains(t, out.Suggestions, "--tabs:select")
}

func TestExecuteValidation(t *testing.T) {
	rig := newTestRig(t)

	resp := rig.request(t, http.MethodPost, "/v1/execute", ExecuteRequest{Command: "--x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegistryEndpoint(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register("--a", func(context.Context, *command.Invocation) error { return nil }))
	require.NoError(t, rig.registry.Register("--b", func(context.Context, *command.Invocation) error { return nil }))

	resp := rig.request(t, http.MethodGet, "/v1/registry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[RegistryResponse](t, resp)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"--a", "--b"}, out.Prefixes)
}

func TestStateEndpoint(t *testing.T) {
	rig := newTestRig(t)
	rig.states.Set("--save", "panel", state.Completed)

	resp := rig.request(t, http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pairs := decode[[]StatePair](t, resp)
	require.Len(t, pairs, 1)
	assert.Equal(t, StatePair{Command: "--save", Target: "panel", Lifecycle: "completed"}, pairs[0])
}

func TestTemplatesEndpoint(t *testing.T) {
	rig := newTestRig(t)
	tpl, err := pipeline.Compile(pipeline.TemplateSpec{
		Name:  "startup",
		Steps: []pipeline.StepSpec{{Command: "--show", Target: "panel"}},
	})
	require.NoError(t, err)
	require.NoError(t, rig.templates.Register(tpl))

	resp := rig.request(t, http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[[]pipeline.Template](t, resp)
	require.Len(t, out, 1)
	assert.Equal(t, "startup", out[0].Name)
	assert.NotEmpty(t, out[0].Fingerprint)
}

func TestJournalEndpoints(t *testing.T) {
	rig := newTestRig(t)
	rig.doc.Root().AppendChild(node.New("div", "panel", nil))
	require.NoError(t, rig.registry.Register("--ping", func(context.Context, *command.Invocation) error {
		return nil
	}))
	rig.request(t, http.MethodPost, "/v1/execute", ExecuteRequest{
		Command: "--ping", Target: "panel", Wait: true,
	}).Body.Close()

	resp := rig.request(t, http.MethodGet, "/v1/journal?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]journal.Entry](t, resp)
	require.Len(t, entries, 1)

	resp = rig.request(t, http.MethodGet, "/v1/journal/"+entries[0].ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode[journal.Entry](t, resp)
	assert.Equal(t, "--ping", entry.Command)

	resp = rig.request(t, http.MethodGet, "/v1/journal/no-such-id", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetEndpoint(t *testing.T) {
	rig := newTestRig(t)
	rig.states.Set("--save", "panel", state.Completed)
	require.NoError(t, rig.registry.Register("--save", func(context.Context, *command.Invocation) error {
		return nil
	}))

	resp := rig.request(t, http.MethodPost, "/v1/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Zero(t, rig.states.Len())
	assert.Zero(t, rig.registry.Len())
}

func TestSSEFrameFormat(t *testing.T) {
	got := sseFrame(events.Event{ID: 7, Type: events.TypeExecutionStarted, Data: []byte(`{"id":"x"}`)})
	assert.Equal(t, "id: 7\nevent: execution.started\ndata: {\"id\":\"x\"}\n\n", string(got))

	// Untyped events still carry id and data lines.
	got = sseFrame(events.Event{ID: 8, Data: []byte(`{}`)})
	assert.Equal(t, "id: 8\ndata: {}\n\n", string(got))
}

func TestEventsStreamReplaysBuffer(t *testing.T) {
	rig := newTestRig(t)
	rig.hub.Publish(events.TypeExecutionStarted, map[string]string{"id": "one"})
	rig.hub.Publish(events.TypeExecutionCompleted, map[string]string{"id": "one"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rig.server.URL+"/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	assert.Contains(t, body, "event: "+events.TypeExecutionStarted)
	assert.Contains(t, body, "id: 1")
}

// Mock-backed tests for failure paths the real stack cannot easily hit.

func mockServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	if deps.Registry == nil {
		deps.Registry = command.NewRegistry(nil)
	}
	s := New(Config{APIKey: testKey}, deps, log.Get())
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return srv
}

func authedGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestJournalReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJournal := mocks.NewMockJournalReader(ctrl)
	mockJournal.EXPECT().Recent(gomock.Any(), 50).Return(nil, errors.New("disk on fire"))

	srv := mockServer(t, Deps{Journal: mockJournal})
	resp := authedGet(t, srv.URL+"/v1/journal")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestExecuteQueueFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockExec := mocks.NewMockExecutor(ctrl)
	mockExec.EXPECT().Execute(gomock.Any()).Return(nil, fmt.Errorf("enqueue: %w", queue.ErrQueueFull))

	srv := mockServer(t, Deps{Executor: mockExec})

	body, _ := json.Marshal(ExecuteRequest{Command: "--x", Target: "t"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/execute", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
