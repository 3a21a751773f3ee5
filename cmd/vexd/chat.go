package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sandevgo/vexd/internal/transport/cli"
	"github.com/sandevgo/vexd/pkg/log"
	"github.com/sandevgo/vexd/pkg/srv"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat from the terminal",
	Long:  `Runs the full turn pipeline against the configured backend and streams replies to the terminal. Background agents stay active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		sigCtx, flushLog = setupLogger(sigCtx)
		defer flushLog()

		ctx, cancel := context.WithCancel(sigCtx)
		defer cancel()

		a := newApp(ctx)

		repl, err := cli.NewReadLine(a.orchestrator, a.cfg)
		if err != nil {
			return err
		}

		srv.StartServices(ctx, a.services)

		if err := repl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.FromCtx(ctx).Error().Err(err).Msg("chat loop failed")
		}
		_ = repl.Shutdown(ctx)

		cancel()
		srv.ShutdownServices(ctx, a.services)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
