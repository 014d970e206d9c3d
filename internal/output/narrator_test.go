package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"labagent/internal/agent/domain"
	"labagent/internal/agent/ports"
	"labagent/internal/workspace"
)

func TestNarratorPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	n := NewCLINarrator(&buf, false, true)

	n.SessionStarted(domain.SessionInfo{
		SessionID: "subj-20250102-030405",
		SubjectID: "subj",
		Model:     "claude-test",
		StartTime: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Files:     1,
	})
	n.TurnStarted(1, 50)
	n.Reasoning("I will   read\nmy journal.")
	n.ToolCall("read_file", json.RawMessage(`{"path":"journal.md"}`))
	n.ToolFailed("read_file", "Error: File not found: journal.md")
	n.Warning("Hit max turns limit (50)")
	n.APIError(errors.New("boom"))
	n.SessionFinished(domain.Result{
		SessionID:   "subj-20250102-030405",
		LogPath:     "/ws/logs/subj-20250102-030405.json",
		Termination: domain.TerminationDone,
		Turns:       2,
		Usage:       ports.TokenUsage{InputTokens: 10, OutputTokens: 4},
		Duration:    1500 * time.Millisecond,
		Changes: []workspace.Change{{
			File:       "journal.md",
			Action:     workspace.ActionModified,
			Patch:      "--- a/journal.md\n+++ b/journal.md\n@@ -1 +1 @@\n-old\n+new\n",
			AddedLines: 1, RemovedLines: 1,
		}},
	})

	out := buf.String()
	for _, want := range []string{
		"=== Session subj-20250102-030405 ===",
		"Subject: subj | Model: claude-test | Started: 2025-01-02T03:04:05Z | 1 file in workspace",
		"  Turn 1/50...",
		"  [Reasoning] I will read my journal.",
		`  [Tool] read_file: {"path":"journal.md"}`,
		"    ✗ read_file: Error: File not found: journal.md",
		"  ⚠ Hit max turns limit (50)",
		"  API error (unknown): boom",
		"Session subj-20250102-030405 finished: done",
		"  2 turns, 10 input / 4 output tokens, 1.50s",
		"    MODIFIED: journal.md modified (+1 -1)",
		"+new\n",
		"  Log: /ws/logs/subj-20250102-030405.json",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escapes with colors disabled, got %q", out)
	}
}

func TestNarratorTruncatesLongToolInput(t *testing.T) {
	var buf bytes.Buffer
	n := NewCLINarrator(&buf, false, false)
	long := `{"content":"` + strings.Repeat("x", 500) + `"}`

	n.ToolCall("write_file", json.RawMessage(long))

	if strings.Contains(buf.String(), long) {
		t.Fatalf("expected tool input to be truncated, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "…") {
		t.Fatalf("expected ellipsis, got %q", buf.String())
	}
}

func TestNarratorColors(t *testing.T) {
	var buf bytes.Buffer
	n := NewCLINarrator(&buf, true, false)
	n.Warning("careful")
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes with colors enabled, got %q", buf.String())
	}
}

func TestNarratorWithoutChanges(t *testing.T) {
	var buf bytes.Buffer
	n := NewCLINarrator(&buf, false, false)
	n.SessionFinished(domain.Result{SessionID: "s", Termination: domain.TerminationMaxTurns, Turns: 1})
	if !strings.Contains(buf.String(), "No workspace changes.") || !strings.Contains(buf.String(), "1 turn, 0 input") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestConstrainWidth(t *testing.T) {
	got := ConstrainWidth("abcdefghij\nshort\n", 5)
	if got != "abcd…\nshort\n" {
		t.Fatalf("unexpected constrained output %q", got)
	}
	if ConstrainWidth("abc", 0) != "abc" {
		t.Fatalf("expected zero width to disable truncation")
	}
}

func TestFormatHelpers(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{4200 * time.Millisecond, "4.20s"},
		{12*time.Minute + 3*time.Second, "12m03s"},
		{time.Hour + 5*time.Minute, "1h05m"},
	}
	for _, tc := range cases {
		if got := FormatDurationShort(tc.d); got != tc.want {
			t.Fatalf("FormatDurationShort(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
	if got := FormatBytes(2048); got != "2.0 KB" {
		t.Fatalf("FormatBytes(2048) = %q", got)
	}
	if got := FormatBytes(12); got != "12 B" {
		t.Fatalf("FormatBytes(12) = %q", got)
	}
}

func TestEllipsize(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 7, "hello…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"héllo wörld", 4, "hél…"},
	}
	for _, tc := range cases {
		if got := ellipsize(tc.in, tc.limit); got != tc.want {
			t.Fatalf("ellipsize(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
