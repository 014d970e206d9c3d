package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labagent/internal/logging"
	sessionstore "labagent/internal/session/filestore"
)

func newSessionsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List recorded sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSessions(cmd, root)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSessions(cmd, root)
		},
	})
	return cmd
}

func listSessions(cmd *cobra.Command, root *rootOptions) error {
	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	store := sessionstore.New(cfg.LogPath(), logging.Nop())
	entries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No sessions found in %s\n", store.Dir())
		return nil
	}

	fmt.Fprintf(out, "%-40s %-20s %7s  %s\n", "ID", "STARTED", "EVENTS", "STATUS")
	for _, e := range entries {
		status := "finalized"
		if !e.Finalized {
			status = "incomplete"
		}
		fmt.Fprintf(out, "%-40s %-20s %7d  %s\n", e.ID, e.StartTime.Format("2006-01-02 15:04:05"), e.Events, status)
	}
	fmt.Fprintf(out, "\n%d session(s) in %s\n", len(entries), store.Dir())
	return nil
}
