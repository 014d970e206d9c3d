package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"labagent/internal/agent/domain"
	"labagent/internal/diff"
	laberrors "labagent/internal/errors"
)

const (
	reasoningPreviewLimit = 200
	toolInputPreviewLimit = 100
)

// CLINarrator prints session progress to a terminal.
type CLINarrator struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	patches *diff.Generator

	blue   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
	gray   *color.Color
	bold   *color.Color
}

var _ domain.Narrator = (*CLINarrator)(nil)

// NewCLINarrator creates a narrator writing to out. Colors are used only
// when colorEnabled is set; verbose additionally prints change patches.
func NewCLINarrator(out io.Writer, colorEnabled, verbose bool) *CLINarrator {
	n := &CLINarrator{
		out:     out,
		verbose: verbose,
		patches: diff.NewGenerator(3, colorEnabled),
		blue:    color.New(color.FgBlue),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
		cyan:    color.New(color.FgCyan),
		gray:    color.New(color.FgHiBlack),
		bold:    color.New(color.Bold),
	}
	for _, c := range []*color.Color{n.blue, n.green, n.yellow, n.red, n.cyan, n.gray, n.bold} {
		if colorEnabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return n
}

func (n *CLINarrator) println(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.out, ConstrainOutputWidth(line, n.out))
}

func (n *CLINarrator) SessionStarted(info domain.SessionInfo) {
	n.println(n.bold.Sprintf("=== Session %s ===", info.SessionID))
	n.println(n.gray.Sprintf("Subject: %s | Model: %s | Started: %s | %d %s in workspace",
		info.SubjectID, info.Model, info.StartTime.Format(time.RFC3339), info.Files, pluralize("file", info.Files)))
}

func (n *CLINarrator) TurnStarted(turn, maxTurns int) {
	n.println(n.blue.Sprintf("  Turn %d/%d...", turn, maxTurns))
}

func (n *CLINarrator) Reasoning(text string) {
	preview := ellipsize(strings.Join(strings.Fields(text), " "), reasoningPreviewLimit)
	n.println(n.cyan.Sprint("  [Reasoning] ") + preview)
}

func (n *CLINarrator) ToolCall(name string, input json.RawMessage) {
	args := strings.TrimSpace(string(input))
	if args == "" {
		args = "{}"
	}
	n.println(n.green.Sprintf("  [Tool] %s", name) + n.gray.Sprint(": "+ellipsize(args, toolInputPreviewLimit)))
}

func (n *CLINarrator) ToolFailed(name, message string) {
	first, _, _ := strings.Cut(message, "\n")
	n.println(n.red.Sprintf("    ✗ %s: %s", name, ellipsize(first, toolInputPreviewLimit)))
}

func (n *CLINarrator) Warning(message string) {
	n.println(n.yellow.Sprintf("  ⚠ %s", message))
}

func (n *CLINarrator) APIError(err error) {
	n.println(n.red.Sprintf("  API error (%s): %s", laberrors.Classify(err), laberrors.FormatForLLM(err)))
}

func (n *CLINarrator) SessionFinished(result domain.Result) {
	n.println("")
	n.println(n.bold.Sprintf("Session %s finished: %s", result.SessionID, n.termination(result.Termination)))
	stats := fmt.Sprintf("  %d %s, %d input / %d output tokens",
		result.Turns, pluralize("turn", result.Turns),
		result.Usage.InputTokens, result.Usage.OutputTokens)
	if d := FormatDurationShort(result.Duration); d != "" {
		stats += ", " + d
	}
	n.println(n.gray.Sprint(stats))

	if len(result.Changes) == 0 {
		n.println("  No workspace changes.")
	} else {
		n.println(fmt.Sprintf("  %d %s changed:", len(result.Changes), pluralize("file", len(result.Changes))))
		for _, c := range result.Changes {
			n.println(fmt.Sprintf("    %s: %s %s", strings.ToUpper(string(c.Action)), c.File, n.gray.Sprint(diff.Summary(c))))
			if n.verbose && c.Patch != "" {
				n.mu.Lock()
				_, _ = fmt.Fprint(n.out, n.patches.Colorize(c.Patch))
				n.mu.Unlock()
			}
		}
	}
	n.println(n.gray.Sprintf("  Log: %s", result.LogPath))
}

func (n *CLINarrator) termination(reason string) string {
	switch reason {
	case domain.TerminationDone:
		return n.green.Sprint(reason)
	case domain.TerminationMaxTurns:
		return n.yellow.Sprint(reason)
	default:
		return n.red.Sprint(reason)
	}
}
