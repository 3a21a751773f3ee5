package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/vexd/pkg/log"
)

// Behavior is one agent type's reaction to a dispatched event. The logf
// callback writes into the agent's rolling log.
type Behavior interface {
	Run(ctx context.Context, rec Record, payload map[string]any, logf func(format string, args ...any)) error
}

// Dispatcher fans events out to enabled agents whose triggers match,
// running each task on a shared bounded pool. Overflow is dropped and
// logged rather than blocking the chat path.
type Dispatcher struct {
	registry  *Registry
	pool      *Pool
	behaviors map[string]Behavior
}

func NewDispatcher(registry *Registry, pool *Pool) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		pool:      pool,
		behaviors: make(map[string]Behavior),
	}
}

// Register binds a behavior to an agent type.
func (d *Dispatcher) Register(agentType string, behavior Behavior) {
	d.behaviors[agentType] = behavior
}

// EmitEvent is fire and forget: it enqueues matching agents and returns
// without waiting for any of them.
func (d *Dispatcher) EmitEvent(ctx context.Context, name string, payload map[string]any) {
	for _, rec := range d.registry.List() {
		if !rec.Enabled || !contains(rec.Triggers, name) {
			continue
		}

		d.dispatch(ctx, rec, name, payload)
	}
}

// RunOnce triggers a single agent immediately, ignoring its enabled flag.
func (d *Dispatcher) RunOnce(ctx context.Context, id, event string, payload map[string]any) error {
	rec, ok := d.registry.Get(id)
	if !ok {
		return fmt.Errorf("unknown agent: %s", id)
	}

	d.dispatch(ctx, rec, event, payload)

	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, rec Record, event string, payload map[string]any) {
	merged := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	merged["event"] = event

	// The task outlives the request that triggered it.
	taskCtx := context.WithoutCancel(ctx)

	ok := d.pool.Submit(func() {
		d.run(taskCtx, rec, merged)
	})
	if !ok {
		d.registry.AppendLog(rec.ID, logLine("dropped: task queue full"))
		log.FromCtx(ctx).Warn().Str("agent", rec.ID).Msg("agent task dropped, queue full")
	}
}

func (d *Dispatcher) run(ctx context.Context, rec Record, payload map[string]any) {
	logger := log.FromCtx(ctx)

	behavior, ok := d.behaviors[rec.Type]
	if !ok {
		d.registry.AppendLog(rec.ID, logLine("unknown agent type: "+rec.Type))
		logger.Warn().Str("agent", rec.ID).Str("type", rec.Type).Msg("no behavior for agent type")

		return
	}

	d.registry.setStatus(rec.ID, StatusRunning, "")

	logf := func(format string, args ...any) {
		d.registry.AppendLog(rec.ID, logLine(fmt.Sprintf(format, args...)))
	}

	if err := behavior.Run(ctx, rec, payload, logf); err != nil {
		d.registry.setStatus(rec.ID, StatusError, err.Error())
		logf("error: %v", err)
		logger.Error().Err(err).Str("agent", rec.ID).Msg("agent task failed")

		return
	}

	d.registry.setStatus(rec.ID, StatusIdle, "")
}

func logLine(msg string) string {
	return time.Now().Format(time.RFC3339) + " " + msg
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}

	return false
}
