package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labagent/internal/logging"
	"labagent/internal/output"
	jsonx "labagent/internal/shared/json"
	"labagent/internal/workspace"
)

func newSnapshotCommand(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the fingerprint of every file in the workspace",
		Long: `Snapshot hashes the workspace the same way a session does before and
after it runs: every regular file except the session log directory and
excluded patterns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			snapshotter, err := workspace.NewSnapshotter(workspace.SnapshotOptions{
				Root:         cfg.Workspace,
				LogDir:       cfg.LogPath(),
				Exclude:      cfg.Exclude,
				PreviewChars: cfg.PreviewChars,
				Workers:      cfg.SnapshotWorkers,
				Logger:       logging.Nop(),
			})
			if err != nil {
				return err
			}
			snap, err := snapshotter.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := jsonx.MarshalIndent(snap.Hashes(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			for _, e := range snap.Entries() {
				fmt.Fprintf(out, "%s  %9s  %s\n", e.Hash, output.FormatBytes(e.Size), e.Path)
			}
			fmt.Fprintf(out, "\n%d file(s), %s in %s\n", snap.Len(), output.FormatBytes(snap.TotalSize()), snapshotter.Root())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the path to hash map as JSON")
	return cmd
}
