package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/vexd/internal/core"
)

type stubBehavior struct {
	block    chan struct{}
	err      error
	payloads chan map[string]any
}

func newStubBehavior() *stubBehavior {
	return &stubBehavior{payloads: make(chan map[string]any, 8)}
}

func (s *stubBehavior) Run(_ context.Context, _ Record, payload map[string]any, _ func(string, ...any)) error {
	if s.block != nil {
		<-s.block
	}
	s.payloads <- payload

	return s.err
}

func waitForStatus(t *testing.T, reg *Registry, id string, want Status) Record {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		rec, ok := reg.Get(id)
		if ok && rec.Status == want {
			return rec
		}

		select {
		case <-deadline:
			t.Fatalf("agent %s never reached status %s", id, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func scannedRegistry(t *testing.T, enabled bool) *Registry {
	t.Helper()

	dir := t.TempDir()
	body := "type: memory_triage\ntriggers: [on_chat_turn_saved]\nenabled: false\n"
	if enabled {
		body = "type: memory_triage\ntriggers: [on_chat_turn_saved]\nenabled: true\n"
	}
	writeAgent(t, dir, "triage", body)

	reg := NewRegistry(dir)
	require.NoError(t, reg.Scan(context.Background()))

	return reg
}

func TestDispatcherRunsMatchingAgents(t *testing.T) {
	reg := scannedRegistry(t, true)
	pool := NewPool(1, 4)
	defer pool.Close()

	behavior := newStubBehavior()
	d := NewDispatcher(reg, pool)
	d.Register(TypeMemoryTriage, behavior)

	d.EmitEvent(context.Background(), core.EventTurnSaved, map[string]any{"session_id": "s1"})

	payload := <-behavior.payloads
	assert.Equal(t, core.EventTurnSaved, payload["event"])
	assert.Equal(t, "s1", payload["session_id"])

	waitForStatus(t, reg, "triage", StatusIdle)
}

func TestDispatcherSkipsDisabledAndUnmatched(t *testing.T) {
	reg := scannedRegistry(t, false)
	pool := NewPool(1, 4)
	defer pool.Close()

	behavior := newStubBehavior()
	d := NewDispatcher(reg, pool)
	d.Register(TypeMemoryTriage, behavior)

	d.EmitEvent(context.Background(), core.EventTurnSaved, nil)
	d.EmitEvent(context.Background(), "on_unrelated", nil)

	select {
	case <-behavior.payloads:
		t.Fatal("behavior should not have run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherRecordsFailure(t *testing.T) {
	reg := scannedRegistry(t, true)
	pool := NewPool(1, 4)
	defer pool.Close()

	behavior := newStubBehavior()
	behavior.err = errors.New("backend down")

	d := NewDispatcher(reg, pool)
	d.Register(TypeMemoryTriage, behavior)

	d.EmitEvent(context.Background(), core.EventTurnSaved, nil)
	<-behavior.payloads

	rec := waitForStatus(t, reg, "triage", StatusError)
	assert.Equal(t, "backend down", rec.LastError)

	logs := reg.Logs("triage")
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1], "backend down")
}

func TestDispatcherRunOnceIgnoresEnabled(t *testing.T) {
	reg := scannedRegistry(t, false)
	pool := NewPool(1, 4)
	defer pool.Close()

	behavior := newStubBehavior()
	d := NewDispatcher(reg, pool)
	d.Register(TypeMemoryTriage, behavior)

	require.NoError(t, d.RunOnce(context.Background(), "triage", core.EventTurnSaved, nil))
	payload := <-behavior.payloads
	assert.Equal(t, core.EventTurnSaved, payload["event"])

	assert.Error(t, d.RunOnce(context.Background(), "ghost", core.EventTurnSaved, nil))
}

func TestDispatcherDropsOnFullQueue(t *testing.T) {
	reg := scannedRegistry(t, true)
	pool := NewPool(1, 1)
	defer pool.Close()

	behavior := newStubBehavior()
	behavior.block = make(chan struct{})

	d := NewDispatcher(reg, pool)
	d.Register(TypeMemoryTriage, behavior)

	ctx := context.Background()

	// First fills the worker, second fills the queue, third is dropped.
	d.EmitEvent(ctx, core.EventTurnSaved, nil)
	waitForStatus(t, reg, "triage", StatusRunning)
	d.EmitEvent(ctx, core.EventTurnSaved, nil)
	d.EmitEvent(ctx, core.EventTurnSaved, nil)

	logs := reg.Logs("triage")
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1], "queue full")

	close(behavior.block)
	<-behavior.payloads
	<-behavior.payloads
}

func TestDispatcherUnknownType(t *testing.T) {
	reg := scannedRegistry(t, true)
	pool := NewPool(1, 4)
	defer pool.Close()

	d := NewDispatcher(reg, pool)
	d.EmitEvent(context.Background(), core.EventTurnSaved, nil)

	deadline := time.After(2 * time.Second)
	for len(reg.Logs("triage")) == 0 {
		select {
		case <-deadline:
			t.Fatal("no log line recorded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	assert.Contains(t, reg.Logs("triage")[0], "unknown agent type")
}
