package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"labagent/internal/session"
	"labagent/internal/workspace"
)

const markdownExcerpt = 600

// MarkdownExporter renders a readable timeline of the session.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(rec session.Record, w io.Writer) error {
	s := Summarize(rec)
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", rec.SessionID)
	if s.SubjectID != "" {
		fmt.Fprintf(&b, "**Subject:** %s  \n", s.SubjectID)
	}
	if s.Model != "" {
		fmt.Fprintf(&b, "**Model:** %s  \n", s.Model)
	}
	fmt.Fprintf(&b, "**Started:** %s  \n", s.StartTime)
	termination := s.Termination
	if !s.Finalized {
		termination = "incomplete"
	}
	fmt.Fprintf(&b, "**Termination:** %s  \n", termination)
	fmt.Fprintf(&b, "**Turns:** %d, **tool calls:** %d, **tool errors:** %d  \n", s.Turns, s.ToolCalls, s.ToolErrors)
	fmt.Fprintf(&b, "**Tokens:** %d in / %d out\n\n", s.InputTokens, s.OutputTokens)

	if len(s.Tools) > 0 {
		names := make([]string, 0, len(s.Tools))
		for name := range s.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("| Tool | Calls |\n|---|---|\n")
		for _, name := range names {
			fmt.Fprintf(&b, "| %s | %d |\n", name, s.Tools[name])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Timeline\n\n")
	for _, ev := range rec.Events {
		line := describe(ev)
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "- `%s` **%s** %s\n", ev.Timestamp.Format("15:04:05"), ev.Type, line)
	}
	b.WriteString("\n")

	for _, ev := range rec.Events {
		d, ok := ev.Payload.(session.WorkspaceDiff)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## Workspace changes (%d)\n\n", d.FilesChanged)
		if len(d.Changes) == 0 {
			b.WriteString("No files changed.\n")
		}
		for _, c := range d.Changes {
			writeChange(&b, c)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}

func describe(ev session.Event) string {
	switch p := ev.Payload.(type) {
	case session.SessionStart:
		return fmt.Sprintf("%d files in workspace", len(p.WorkspaceSnapshot))
	case session.Prompt:
		return fmt.Sprintf("journal excerpt of %d chars", len([]rune(p.User)))
	case session.APIResponse:
		return fmt.Sprintf("turn %d, stop `%s`, %d/%d tokens", p.Turn, p.StopReason, p.Usage.InputTokens, p.Usage.OutputTokens)
	case session.Reasoning:
		return quote(p.Text)
	case session.ToolCall:
		return fmt.Sprintf("`%s` %s", p.Tool, inline(string(p.Input)))
	case session.ToolResult:
		return fmt.Sprintf("`%s` %s", p.Tool, inline(p.Result))
	case session.ToolError:
		return fmt.Sprintf("`%s` %s", p.Tool, inline(p.Error))
	case session.FileEdit:
		return fmt.Sprintf("`%s` %s → %s", p.Path, short(p.BeforeHash), short(p.AfterHash))
	case session.CommandExec:
		return inline(p.Command)
	case session.WebSearch:
		return inline(p.Query)
	case session.Warning:
		return p.Message
	case session.APIError:
		return fmt.Sprintf("turn %d (%s): %s", p.Turn, p.Kind, inline(p.Error))
	case session.WorkspaceDiff:
		return fmt.Sprintf("%d files changed", p.FilesChanged)
	case session.SessionEnd:
		return fmt.Sprintf("%d events in %.1fs", p.TotalEvents, p.DurationSeconds)
	}
	return ""
}

func writeChange(b *strings.Builder, c workspace.Change) {
	fmt.Fprintf(b, "### %s `%s`\n\n", strings.ToUpper(string(c.Action)), c.File)
	if c.Patch != "" {
		fmt.Fprintf(b, "```diff\n%s```\n\n", c.Patch)
		return
	}
	fmt.Fprintf(b, "%s → %s\n\n", short(c.BeforeHash), short(c.AfterHash))
}

func quote(text string) string {
	return "> " + inline(text)
}

func inline(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return "`" + strings.ReplaceAll(workspace.TruncateChars(text, markdownExcerpt), "`", "'") + "`"
}

func short(hash string) string {
	if hash == workspace.NotFound || len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
