package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/providers/llm"
)

type recordedMessage struct {
	SessionID string
	Role      string
	Content   string
	Meta      map[string]any
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]string
	messages []recordedMessage
	params   []map[string]any
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]string)}
}

func (f *fakeSessions) UpsertSession(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		f.sessions[id] = title
	}
	return nil
}

func (f *fakeSessions) AddMessage(_ context.Context, sessionID, role, content string, meta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, recordedMessage{sessionID, role, content, meta})
	return nil
}

func (f *fakeSessions) AddParams(_ context.Context, sessionID string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, data)
	return nil
}

func (f *fakeSessions) GetSession(context.Context, string) (*core.SessionTranscript, error) {
	return nil, nil
}

func (f *fakeSessions) ListSessions(context.Context, int) ([]core.Session, error) {
	return nil, nil
}

func (f *fakeSessions) DeleteSession(context.Context, string) error { return nil }

func (f *fakeSessions) recorded() []recordedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeSessions) waitForRole(t *testing.T, role string) recordedMessage {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		for _, m := range f.recorded() {
			if m.Role == role {
				return m
			}
		}
		select {
		case <-deadline:
			t.Fatalf("no %s message recorded", role)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type fakeSink struct {
	mu     sync.Mutex
	events []map[string]any
}

func (f *fakeSink) EmitEvent(_ context.Context, name string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := map[string]any{"name": name}
	for k, v := range payload {
		ev[k] = v
	}
	f.events = append(f.events, ev)
}

func (f *fakeSink) all() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.events...)
}

func sseBackend(t *testing.T, chunks []string, done bool) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
			flusher.Flush()
		}
		if done {
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestOrchestrator(t *testing.T, backendURL string, sessions *fakeSessions, sink *fakeSink) *Orchestrator {
	t.Helper()

	factory := llm.NewFactory(backendURL, core.SourceLocal, core.OpenRouterOptions{})

	return New(
		factory,
		NewRecallEngine(nil, nil),
		newTestSynthesizer(t, "Base instructions."),
		sessions,
		sink,
		3,
	)
}

func turnReq() TurnRequest {
	return TurnRequest{
		SessionID: "s1",
		Messages:  []core.Message{{Role: core.RoleUser, Content: "tell me about the docker setup please"}},
	}
}

func TestStreamAssemblesAndRecords(t *testing.T) {
	backend := sseBackend(t, []string{"Hel", "lo ", "there"}, true)
	sessions := newFakeSessions()
	sink := &fakeSink{}
	orch := newTestOrchestrator(t, backend.URL, sessions, sink)

	deltas, err := orch.Stream(context.Background(), turnReq())
	require.NoError(t, err)

	var got string
	for d := range deltas {
		require.NoError(t, d.Err)
		got += d.Content
	}
	assert.Equal(t, "Hello there", got)

	user := sessions.waitForRole(t, core.RoleUser)
	assert.Equal(t, "s1", user.SessionID)
	assert.Equal(t, "tell me about the docker setup please", user.Content)

	assistant := sessions.waitForRole(t, core.RoleAssistant)
	assert.Equal(t, "Hello there", assistant.Content)
	route, ok := assistant.Meta["route"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"engineer"}, route["domains"])

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventTurnSaved, events[0]["name"])
	assert.Equal(t, "s1", events[0]["session_id"])

	msg, ok := events[0]["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, core.RoleUser, msg["role"])

	// Session title is guessed from the first user message.
	assert.Contains(t, sessions.sessions["s1"], "tell me about the docker setup")

	require.Len(t, sessions.params, 1)
	assert.Equal(t, []string{"engineer"}, sessions.params[0]["domains"])
	assert.NotEmpty(t, sessions.params[0]["system_prompt"])
}

func TestStreamEmptyReplyNotRecorded(t *testing.T) {
	backend := sseBackend(t, nil, true)
	sessions := newFakeSessions()
	orch := newTestOrchestrator(t, backend.URL, sessions, &fakeSink{})

	deltas, err := orch.Stream(context.Background(), turnReq())
	require.NoError(t, err)
	for range deltas {
	}

	sessions.waitForRole(t, core.RoleUser)

	// Give the recorder goroutine a beat, then confirm no assistant row.
	time.Sleep(50 * time.Millisecond)
	for _, m := range sessions.recorded() {
		assert.NotEqual(t, core.RoleAssistant, m.Role)
	}
}

func TestStreamBackendFailureRecorded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(backend.Close)

	sessions := newFakeSessions()
	orch := newTestOrchestrator(t, backend.URL, sessions, &fakeSink{})

	_, err := orch.Stream(context.Background(), turnReq())
	require.Error(t, err)

	assistant := sessions.waitForRole(t, core.RoleAssistant)
	assert.Empty(t, assistant.Content)
	assert.Contains(t, assistant.Meta["error"], "model not loaded")
}

func TestStreamCancellationKeepsPartial(t *testing.T) {
	started := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		flusher.Flush()
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(backend.Close)

	sessions := newFakeSessions()
	orch := newTestOrchestrator(t, backend.URL, sessions, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deltas, err := orch.Stream(ctx, turnReq())
	require.NoError(t, err)

	first := <-deltas
	require.NoError(t, first.Err)
	assert.Equal(t, "partial", first.Content)

	<-started
	cancel()

	for range deltas {
	}

	assistant := sessions.waitForRole(t, core.RoleAssistant)
	assert.Equal(t, "partial", assistant.Content)
	_, hasErr := assistant.Meta["error"]
	assert.False(t, hasErr)
}

func TestOnce(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"full reply"}}]}`)
	}))
	t.Cleanup(backend.Close)

	sessions := newFakeSessions()
	orch := newTestOrchestrator(t, backend.URL, sessions, &fakeSink{})

	content, err := orch.Once(context.Background(), turnReq())
	require.NoError(t, err)
	assert.Equal(t, "full reply", content)

	assistant := sessions.waitForRole(t, core.RoleAssistant)
	assert.Equal(t, "full reply", assistant.Content)
}

func TestStreamUnknownSource(t *testing.T) {
	sessions := newFakeSessions()
	orch := newTestOrchestrator(t, "http://127.0.0.1:0", sessions, &fakeSink{})

	req := turnReq()
	req.Meta = &core.TurnMeta{Source: "fax"}

	_, err := orch.Stream(context.Background(), req)
	assert.ErrorContains(t, err, "unknown chat source")
}
