package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/orchestrator"
	"github.com/sandevgo/vexd/internal/persona"
	"github.com/sandevgo/vexd/internal/providers/llm"
	"github.com/sandevgo/vexd/internal/service/agent"
	"github.com/sandevgo/vexd/internal/storage/sqlite"
	"github.com/sandevgo/vexd/internal/storage/vector"
)

type testEnv struct {
	api      *httptest.Server
	sessions *sqlite.SessionRepo
	vectors  *vector.Store
}

// newTestEnv wires a full server against an in-process SSE backend. When
// withMemory is false the vector store is nil and memory routes refuse.
func newTestEnv(t *testing.T, withMemory bool) *testEnv {
	t.Helper()

	ctx := context.Background()
	root := t.TempDir()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)

		if stream, _ := payload["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"streamed \"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"reply\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"once reply"}}]}`)
	}))
	t.Cleanup(backend.Close)

	db, err := sqlite.NewDB(ctx, filepath.Join(root, "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sessions := sqlite.NewSessionRepo(db)

	var vectors *vector.Store
	if withMemory {
		vectors, err = vector.NewStore(ctx, filepath.Join(root, "memory.db"), 3)
		require.NoError(t, err)
		t.Cleanup(func() { _ = vectors.Close() })
	}

	agentsDir := filepath.Join(root, "agents", "memory-triage")
	require.NoError(t, os.MkdirAll(agentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "agent.yaml"), []byte(
		"name: Memory Triage\ntype: memory_triage\nenabled: true\ntriggers: [on_chat_turn_saved]\n",
	), 0o644))

	personasDir := filepath.Join(root, "personas")
	require.NoError(t, os.MkdirAll(personasDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(personasDir, "noir.yaml"), []byte(
		"name: Noir\nsystem: You are a detective.\n",
	), 0o644))
	personas := persona.NewStore(personasDir)

	registry := agent.NewRegistry(filepath.Join(root, "agents"))
	require.NoError(t, registry.Scan(ctx))

	pool := agent.NewPool(1, 4)
	t.Cleanup(pool.Close)
	dispatcher := agent.NewDispatcher(registry, pool)

	synth := orchestrator.NewSynthesizer(filepath.Join(root, "SYSTEM.md"), personas)
	orch := orchestrator.New(
		llm.NewFactory(backend.URL, core.SourceLocal, core.OpenRouterOptions{}),
		orchestrator.NewRecallEngine(nil, nil),
		synth,
		sessions,
		dispatcher,
		3,
	)

	srv := New("127.0.0.1:0", Deps{
		Orchestrator: orch,
		Sessions:     sessions,
		Vectors:      vectors,
		Personas:     personas,
		Registry:     registry,
		Dispatcher:   dispatcher,
	})

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testEnv{api: api, sessions: sessions, vectors: vectors}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(e.api.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, body
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, e.api.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, data
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestTurnStreamsSSE(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/v1/turn",
		`{"session_id":"s1","messages":[{"role":"user","content":"hello there friend"}]}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `data: {"content":"streamed "}`)
	assert.Contains(t, string(body), "data: [DONE]")
}

func TestTurnValidation(t *testing.T) {
	env := newTestEnv(t, false)

	resp, _ := env.do(t, http.MethodPost, "/v1/turn", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/turn", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTurnOnce(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/v1/turn/once",
		`{"session_id":"s1","messages":[{"role":"user","content":"hello"}]}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"content":"once reply"}`, string(body))
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.sessions.UpsertSession(ctx, "s1", "my chat"))
	require.NoError(t, env.sessions.AddMessage(ctx, "s1", core.RoleUser, "hello", nil))

	resp, body := env.get(t, "/v1/sessions/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "my chat")

	resp, body = env.get(t, "/v1/sessions/s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hello")

	resp, body = env.get(t, "/v1/sessions/s1/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "# Session: my chat")

	resp, body = env.get(t, "/v1/sessions/s1/export?format=html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<h1")

	resp, _ = env.do(t, http.MethodDelete, "/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.get(t, "/v1/sessions/s1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.get(t, "/v1/agents/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "memory-triage")
	assert.Contains(t, string(body), "idle")

	resp, _ = env.do(t, http.MethodPost, "/v1/agents/memory-triage/enable", `{"enabled":false}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.get(t, "/v1/agents/memory-triage/config")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "memory_triage")

	resp, _ = env.get(t, "/v1/agents/ghost/logs")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/agents/ghost/run", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/agents/memory-triage/run", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPersonasEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.get(t, "/v1/personas")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Noir")
}

func TestMemoryDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.get(t, "/v1/memory/collections")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "disabled")
}

func TestMemoryEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	ids, err := env.vectors.Upsert(ctx, "general",
		[][]float32{{1, 0, 0}}, []string{"likes black tea"}, nil)
	require.NoError(t, err)

	resp, body := env.get(t, "/v1/memory/collections")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "general")

	resp, body = env.get(t, "/v1/memory/collections/general/peek")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "likes black tea")

	resp, body = env.get(t, "/v1/memory/collections/general/search?q=tea")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "likes black tea")

	resp, _ = env.get(t, "/v1/memory/collections/general/search")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/v1/memory/documents/"+ids[0], "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/v1/memory/collections/general", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
