package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"labagent/internal/logging"
	"labagent/internal/output"
	"labagent/internal/session"
	"labagent/internal/session/export"
	sessionstore "labagent/internal/session/filestore"
)

func newInspectCommand(root *rootOptions) *cobra.Command {
	var (
		format string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [session-id | log.json]",
		Short: "Summarise or export a session log",
		Long: `Inspect loads a session log by id (from the log directory), by path, or
the most recent one with --latest. Without --format a summary is printed;
--format json|yaml|markdown exports the whole log.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if latest == (len(args) == 1) {
				return fmt.Errorf("pass a session id or log path, or --latest")
			}
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			store := sessionstore.New(cfg.LogPath(), logging.Nop())

			var rec session.Record
			switch {
			case latest:
				rec, err = store.Latest(cmd.Context())
			case isLogPath(args[0]):
				rec, err = session.Load(args[0])
			default:
				rec, err = store.Get(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "" {
				return renderSummary(out, export.Summarize(rec))
			}
			return exportRecord(out, rec, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: json, yaml or markdown")
	cmd.Flags().BoolVar(&latest, "latest", false, "inspect the most recent session")
	return cmd
}

func isLogPath(arg string) bool {
	if strings.ContainsAny(arg, `/\`) {
		return true
	}
	if !strings.HasSuffix(arg, ".json") {
		return false
	}
	_, err := os.Stat(arg)
	return err == nil
}

func exportRecord(w io.Writer, rec session.Record, format string) error {
	exporter, err := export.NewExporter(format)
	if err != nil {
		return err
	}
	if exporter.Extension() != "md" {
		return exporter.Export(rec, w)
	}

	var buf bytes.Buffer
	if err := exporter.Export(rec, &buf); err != nil {
		return err
	}
	rendered, err := output.NewMarkdownRenderer(w).Render(buf.String())
	if err != nil {
		rendered = buf.String()
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func renderSummary(w io.Writer, s export.Summary) error {
	r := lipgloss.NewRenderer(w)
	label := r.NewStyle().Bold(true).Width(15)
	title := r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	box := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	termination := s.Termination
	status := r.NewStyle().Foreground(lipgloss.Color("10"))
	switch {
	case !s.Finalized:
		termination = "incomplete (no session_end)"
		status = status.Foreground(lipgloss.Color("9"))
	case termination != "done":
		status = status.Foreground(lipgloss.Color("11"))
	}

	rows := [][2]string{
		{"Subject", s.SubjectID},
		{"Model", s.Model},
		{"Started", s.StartTime},
		{"Termination", status.Render(termination)},
		{"Turns", fmt.Sprintf("%d", s.Turns)},
		{"Events", fmt.Sprintf("%d", s.Events)},
		{"Tool calls", fmt.Sprintf("%d (%d failed)", s.ToolCalls, s.ToolErrors)},
		{"Files changed", fmt.Sprintf("%d", s.FilesChanged)},
		{"Tokens", fmt.Sprintf("%d in / %d out", s.InputTokens, s.OutputTokens)},
	}
	if s.Finalized {
		d := time.Duration(s.DurationSeconds * float64(time.Second))
		rows = append(rows, [2]string{"Duration", output.FormatDurationShort(d)})
	}

	lines := []string{title.Render("Session " + s.SessionID), ""}
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(row[0]), row[1]))
	}
	if len(s.Tools) > 0 {
		names := make([]string, 0, len(s.Tools))
		for name := range s.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
		lines = append(lines, "", label.Render("Tools"))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("  %-13s %d", name, s.Tools[name]))
		}
	}

	_, err := fmt.Fprintln(w, box.Render(strings.Join(lines, "\n")))
	return err
}
