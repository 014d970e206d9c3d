package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"labagent/internal/agent/domain"
)

const cleanupTimeout = 10 * time.Second

func newRunCommand(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session against the workspace",
		Long: `Run one session: snapshot the workspace, let the agent work through its
tools until it finishes or the turn budget runs out, then record what changed.

The session log is written to <workspace>/<log-dir>/<subject>-<timestamp>.json.
A reasoning service failure ends the session normally but exits with code 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := buildContainer(cfg, containerOptions{
				Out:     cmd.OutOrStdout(),
				Err:     cmd.ErrOrStderr(),
				Verbose: root.verbose,
				DryRun:  dryRun,
			})
			if err != nil {
				return err
			}
			defer func() {
				cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
				defer cancel()
				if err := container.Cleanup(cleanupCtx); err != nil {
					container.Logger.Warn("cleanup failed", "error", err)
				}
			}()

			result, err := container.Runtime.Run(ctx)
			if err != nil {
				return fmt.Errorf("session failed: %w", err)
			}
			if result.Termination == domain.TerminationAPIError {
				return &ExitCodeError{
					Code: exitAPIError,
					Err:  fmt.Errorf("session %s ended with a reasoning service error (log: %s)", result.SessionID, result.LogPath),
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("subject", "", "subject id used in the session id (env SUBJECT_ID)")
	flags.String("model", "", "model name (env MODEL)")
	flags.Int("max-turns", 0, "maximum reasoning turns")
	flags.Int("max-tokens", 0, "maximum output tokens per turn")
	flags.String("metrics-file", "", "write Prometheus metrics to this file when the session ends")
	flags.BoolVar(&dryRun, "dry-run", false, "do not contact the reasoning service; end after one turn")
	return cmd
}
