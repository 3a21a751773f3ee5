package orchestrator

import (
	"context"
	"strings"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/providers/llm"
	"github.com/sandevgo/vexd/pkg/log"
)

const titleGuessLen = 48

// TurnRequest is one conversational turn submitted by the presentation
// layer.
type TurnRequest struct {
	SessionID string         `json:"session_id"`
	Messages  []core.Message `json:"messages"`
	Meta      *core.TurnMeta `json:"meta,omitempty"`
}

// Orchestrator drives the per-turn pipeline: classify, recall, synthesize,
// stream, record. Agent dispatch hangs off the recorded user turn and runs
// decoupled from the reply stream.
type Orchestrator struct {
	factory  *llm.Factory
	recall   *RecallEngine
	synth    *Synthesizer
	sessions core.SessionRepository
	events   core.EventSink
	recallK  int
}

func New(
	factory *llm.Factory,
	recall *RecallEngine,
	synth *Synthesizer,
	sessions core.SessionRepository,
	events core.EventSink,
	recallK int,
) *Orchestrator {
	if recallK <= 0 {
		recallK = 3
	}
	return &Orchestrator{
		factory:  factory,
		recall:   recall,
		synth:    synth,
		sessions: sessions,
		events:   events,
		recallK:  recallK,
	}
}

type preparedTurn struct {
	domains    []string
	systemText string
	messages   []core.Message
}

func (o *Orchestrator) prepare(ctx context.Context, req TurnRequest) preparedTurn {
	domains := DetectDomains(req.Messages)

	query := ""
	if len(req.Messages) > 0 {
		query = req.Messages[len(req.Messages)-1].Content
	}

	recalls := o.recall.Recall(ctx, domains, query, o.recallK)
	base := o.synth.BasePrompt(recalls, domains, req.Meta)
	systemText := o.synth.SystemText(base, req.Meta)

	return preparedTurn{
		domains:    domains,
		systemText: systemText,
		messages:   o.synth.FinalMessages(req.Messages, systemText),
	}
}

// persistTurnStart records the user message and a parameter snapshot, then
// signals the agent dispatcher. Recording failures are logged but never
// abort the generation path.
func (o *Orchestrator) persistTurnStart(ctx context.Context, req TurnRequest, turn preparedTurn) {
	logger := log.FromCtx(ctx)

	title := ""
	for _, m := range req.Messages {
		if m.Role == core.RoleUser && strings.TrimSpace(m.Content) != "" {
			title = strings.TrimSpace(m.Content)
			if len(title) > titleGuessLen {
				title = title[:titleGuessLen]
			}
			break
		}
	}

	if err := o.sessions.UpsertSession(ctx, req.SessionID, title); err != nil {
		logger.Error().Err(err).Str("session", req.SessionID).Msg("failed to upsert session")
	}

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == core.RoleUser {
		userText := req.Messages[n-1].Content

		var meta map[string]any
		if req.Meta != nil {
			meta = map[string]any{"source": req.Meta.Source}
		}
		if err := o.sessions.AddMessage(ctx, req.SessionID, core.RoleUser, userText, meta); err != nil {
			logger.Error().Err(err).Str("session", req.SessionID).Msg("failed to record user message")
		} else if o.events != nil {
			o.events.EmitEvent(ctx, core.EventTurnSaved, map[string]any{
				"session_id": req.SessionID,
				"message": map[string]any{
					"role":    core.RoleUser,
					"content": userText,
				},
			})
		}
	}

	snapshot := map[string]any{
		"domains":       turn.domains,
		"system_prompt": turn.systemText,
		"system_tokens": o.synth.CountTokens(turn.systemText),
	}
	if req.Meta != nil {
		snapshot["ui"] = req.Meta.UI
		snapshot["gen"] = req.Meta.Gen
	}
	if err := o.sessions.AddParams(ctx, req.SessionID, snapshot); err != nil {
		logger.Error().Err(err).Str("session", req.SessionID).Msg("failed to record param snapshot")
	}
}

func (o *Orchestrator) gen(req TurnRequest) *core.GenParams {
	if req.Meta == nil {
		return nil
	}
	return req.Meta.Gen
}

// Stream runs the full pipeline and returns the reply increments. The
// channel is closed at end-of-stream, terminal error, or cancellation;
// everything yielded before that is assembled and committed as the
// assistant message (with an error marker when the stream failed).
func (o *Orchestrator) Stream(ctx context.Context, req TurnRequest) (<-chan core.StreamDelta, error) {
	turn := o.prepare(ctx, req)
	o.persistTurnStart(ctx, req, turn)

	provider, err := o.factory.Provider(req.Meta)
	if err != nil {
		return nil, err
	}

	deltas, err := provider.Stream(ctx, turn.messages, o.gen(req))
	if err != nil {
		o.recordAssistant(ctx, req, turn, "", err)
		return nil, err
	}

	out := make(chan core.StreamDelta)
	go func() {
		defer close(out)

		var assembled strings.Builder
		var streamErr error

		for delta := range deltas {
			if delta.Err != nil {
				streamErr = delta.Err
			} else {
				assembled.WriteString(delta.Content)
			}

			select {
			case out <- delta:
			case <-ctx.Done():
				// Keep draining so the provider goroutine can exit;
				// the connection is already closing.
				for range deltas {
				}
				o.recordAssistant(context.WithoutCancel(ctx), req, turn, assembled.String(), nil)
				return
			}
		}

		o.recordAssistant(context.WithoutCancel(ctx), req, turn, assembled.String(), streamErr)
	}()

	return out, nil
}

// Once is the non-streaming variant of the same pipeline.
func (o *Orchestrator) Once(ctx context.Context, req TurnRequest) (string, error) {
	turn := o.prepare(ctx, req)
	o.persistTurnStart(ctx, req, turn)

	provider, err := o.factory.Provider(req.Meta)
	if err != nil {
		return "", err
	}

	msg, err := provider.Once(ctx, turn.messages, o.gen(req))
	if err != nil {
		o.recordAssistant(ctx, req, turn, "", err)
		return "", err
	}

	o.recordAssistant(ctx, req, turn, msg.Content, nil)
	return msg.Content, nil
}

func (o *Orchestrator) recordAssistant(ctx context.Context, req TurnRequest, turn preparedTurn, content string, streamErr error) {
	if content == "" && streamErr == nil {
		return
	}

	meta := map[string]any{
		"route": map[string]any{"domains": turn.domains},
	}
	if streamErr != nil {
		meta["error"] = streamErr.Error()
	}

	if err := o.sessions.AddMessage(ctx, req.SessionID, core.RoleAssistant, content, meta); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("session", req.SessionID).Msg("failed to record assistant message")
	}
}
