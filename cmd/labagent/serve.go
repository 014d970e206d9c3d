package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"labagent/internal/config"
	"labagent/internal/logging"
	"labagent/internal/observability"
	"labagent/internal/server"
	sessionstore "labagent/internal/session/filestore"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded sessions over a read-only HTTP API",
		Long: `Serve exposes the session log directory over HTTP:

  GET /api/health
  GET /api/sessions
  GET /api/sessions/:id
  GET /api/sessions/:id/summary
  GET /api/sessions/:id/export?format=json|yaml|md
  GET /api/sessions/:id/stream   (websocket, follows a running session)

Nothing is ever written to the log directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			obsLogger, err := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
				File:   cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer func() { _ = obsLogger.Close() }()

			if observability.ParseLevel(cfg.Logging.Level) != slog.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(
				sessionstore.New(cfg.LogPath(), logging.FromObservabilityWithComponent(obsLogger, "store")),
				server.Config{
					Addr:         cfg.Server.Addr,
					EnableCORS:   cfg.Server.EnableCORS,
					PollInterval: cfg.Server.PollInterval,
					Version:      appVersion(),
					Logger:       logging.FromObservabilityWithComponent(obsLogger, "server"),
				},
			).Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", config.DefaultServerAddr, "listen address")
	flags.Bool("cors", false, "allow cross-origin requests from any origin")
	flags.Duration("poll", config.DefaultServerPoll, "how often a streamed session log is re-read")
	return cmd
}
