package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/shell"
)

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run a batch and steer it from an interactive shell",
		Long: `Start a batch in the background and open a shell attached to it.

Use /pause, /play and /abort to control the instances, /status to watch
them and /plot or /entropy once they finish. Type /help for every command.
Leaving the shell aborts a batch that is still running.

Examples:
  consensus shell -n 100000 -k 10 -c 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			simCfg := e.cfg.Simulation
			if err := applySimulationFlags(cmd, &simCfg); err != nil {
				return err
			}

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			r := e.newRunner(st)
			b, err := r.Start(simCfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			done := make(chan runner.Outcome, 1)
			go func() {
				out, err := r.Execute(ctx, b)
				if err != nil {
					e.logger.Error("batch failed", "batch", b.ID(), "error", err)
				}
				done <- out
			}()

			sh := shell.New(r, b, shell.Config{
				HistoryFile: historyFile(),
				CSV:         e.csvConfig(),
			})
			shellErr := sh.Run(ctx)

			select {
			case <-b.Done():
			default:
				fmt.Fprintf(e.errOut, "Aborting batch %s...\n", b.ID())
				b.Abort()
			}
			out := <-done
			fmt.Fprintf(e.errOut, "Batch %s %s\n", out.Batch.ID, out.Batch.Status)
			return shellErr
		},
	}
	addSimulationFlags(cmd)
	return cmd
}

// historyFile keeps shell history next to the default config.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".consensus", "history")
}
