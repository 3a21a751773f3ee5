package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/vexd/internal/config"
	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/orchestrator"
	"github.com/sandevgo/vexd/pkg/log"
)

const defaultSessionID = "cli-local"

// historyWindow caps how much conversation is replayed into each turn.
const historyWindow = 40

// ReadLine is an interactive local chat over the turn pipeline. Replies
// stream to stdout as they are generated.
type ReadLine struct {
	cfg     *config.AppConfig
	orch    *orchestrator.Orchestrator
	rl      *readline.Instance
	history []core.Message
}

func NewReadLine(orch *orchestrator.Orchestrator, cfg *config.AppConfig) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:  cfg,
		orch: orch,
		rl:   rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("chat started. Type 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if err := r.turn(ctx, line); err != nil {
			logger.Error().Err(err).Msg("turn failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		}
	}
}

func (r *ReadLine) turn(ctx context.Context, line string) error {
	r.history = append(r.history, core.Message{Role: core.RoleUser, Content: line})
	if len(r.history) > historyWindow {
		r.history = r.history[len(r.history)-historyWindow:]
	}

	deltas, err := r.orch.Stream(ctx, orchestrator.TurnRequest{
		SessionID: defaultSessionID,
		Messages:  r.history,
	})
	if err != nil {
		return err
	}

	var reply strings.Builder
	for delta := range deltas {
		if delta.Err != nil {
			fmt.Fprintln(r.rl.Stdout())
			return delta.Err
		}

		fmt.Fprint(r.rl.Stdout(), delta.Content)
		reply.WriteString(delta.Content)
	}
	fmt.Fprintln(r.rl.Stdout())

	if reply.Len() > 0 {
		r.history = append(r.history, core.Message{Role: core.RoleAssistant, Content: reply.String()})
	}

	return nil
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
