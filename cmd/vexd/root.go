package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandevgo/vexd/internal/config"
	"github.com/sandevgo/vexd/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "vexd",
	Short: "vexd — a memory-augmented chat orchestrator",
	Long:  `vexd runs the VEX chat pipeline: domain recall, persona prompts, streaming completions and background memory agents behind a local HTTP API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
