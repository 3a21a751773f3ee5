package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sandevgo/vexd/internal/config"
	"github.com/sandevgo/vexd/pkg/env"
	"github.com/sandevgo/vexd/pkg/log"
)

const defaultBasePrompt = `You are VEX, a modular AI persona.

Answer directly and keep explanations grounded in what the user actually asked.
`

const defaultTriageConfig = `name: Memory Triage
type: memory_triage
enabled: true
triggers:
  - on_chat_turn_saved
params:
  min_chars: 80
  min_novelty: 0.85
  target_collections:
    - general
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold the runtime directory",
	Long:  `Creates the runtime directory with a starter .env, base prompt, personas dir and a default memory triage agent. Existing files are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		return runInit(ctx)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	appCfg := config.NewAppConfig(ctx)
	root := appCfg.GetRuntimePath()

	for _, dir := range []string{
		root,
		appCfg.GetMemoryRoot(),
		appCfg.GetPersonasDir(),
		filepath.Join(appCfg.GetAgentsDir(), "memory-triage"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	envContent, err := env.MarshalEnv(appCfg)
	if err != nil {
		return fmt.Errorf("render .env: %w", err)
	}

	wrote, err := writeIfMissing(filepath.Join(root, ".env"), envContent)
	if err != nil {
		return err
	}
	if wrote {
		logger.Info().Str("path", filepath.Join(root, ".env")).Msg("wrote starter .env")
	}

	if _, err := writeIfMissing(appCfg.GetBasePromptPath(), defaultBasePrompt); err != nil {
		return err
	}

	triagePath := filepath.Join(appCfg.GetAgentsDir(), "memory-triage", "agent.yaml")
	if _, err := writeIfMissing(triagePath, defaultTriageConfig); err != nil {
		return err
	}

	logger.Info().Str("path", root).Msg("runtime directory ready")

	return nil
}

func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	return true, nil
}
