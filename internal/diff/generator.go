// Package diff renders line-based unified patches for workspace changes.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"labagent/internal/workspace"
)

// Generator produces unified diffs with a fixed number of context lines.
type Generator struct {
	contextLines int
	colorEnabled bool
}

// NewGenerator creates a new diff generator
func NewGenerator(contextLines int, colorEnabled bool) *Generator {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Generator{
		contextLines: contextLines,
		colorEnabled: colorEnabled,
	}
}

// Result contains a generated patch and its line statistics.
type Result struct {
	Patch        string
	AddedLines   int
	RemovedLines int
	IsBinary     bool
}

type lineOp struct {
	op   diffmatchpatch.Operation
	text string
}

// Unified creates a unified diff between old and new content. Identical
// content yields an empty result.
func (g *Generator) Unified(oldContent, newContent, filename string) Result {
	if oldContent == newContent {
		return Result{}
	}
	if isBinary(oldContent) || isBinary(newContent) {
		return Result{Patch: fmt.Sprintf("Binary file %s has changed\n", filename), IsBinary: true}
	}

	ops := lineOps(oldContent, newContent)

	var res Result
	// oldNo[i]/newNo[i] count the lines of each side consumed before ops[i].
	oldNo := make([]int, len(ops)+1)
	newNo := make([]int, len(ops)+1)
	var changed []int
	for i, o := range ops {
		oldNo[i+1], newNo[i+1] = oldNo[i], newNo[i]
		switch o.op {
		case diffmatchpatch.DiffEqual:
			oldNo[i+1]++
			newNo[i+1]++
		case diffmatchpatch.DiffDelete:
			oldNo[i+1]++
			res.RemovedLines++
			changed = append(changed, i)
		case diffmatchpatch.DiffInsert:
			newNo[i+1]++
			res.AddedLines++
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return Result{}
	}

	var b strings.Builder
	b.WriteString(g.colorize("--- a/"+filename+"\n", color.FgRed))
	b.WriteString(g.colorize("+++ b/"+filename+"\n", color.FgGreen))
	for _, h := range g.hunks(changed, len(ops)) {
		start, end := h[0], h[1]
		oldCount := oldNo[end] - oldNo[start]
		newCount := newNo[end] - newNo[start]
		header := fmt.Sprintf("@@ -%s +%s @@\n", hunkRange(oldNo[start], oldCount), hunkRange(newNo[start], newCount))
		b.WriteString(g.colorize(header, color.FgCyan))
		for _, o := range ops[start:end] {
			switch o.op {
			case diffmatchpatch.DiffDelete:
				b.WriteString(g.colorize("-"+o.text+"\n", color.FgRed))
			case diffmatchpatch.DiffInsert:
				b.WriteString(g.colorize("+"+o.text+"\n", color.FgGreen))
			default:
				b.WriteString(" " + o.text + "\n")
			}
		}
	}
	res.Patch = b.String()
	return res
}

// Annotate fills the patch and line counts of every change from its
// before and after previews. Patches are never colored.
func (g *Generator) Annotate(changes []workspace.Change) {
	plain := &Generator{contextLines: g.contextLines}
	for i := range changes {
		c := &changes[i]
		r := plain.Unified(c.BeforeContent, c.AfterContent, c.File)
		c.Patch = r.Patch
		c.AddedLines = r.AddedLines
		c.RemovedLines = r.RemovedLines
	}
}

// Colorize re-colors a plain patch for terminal display.
func (g *Generator) Colorize(patch string) string {
	if !g.colorEnabled || patch == "" {
		return patch
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(patch, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "-"):
			b.WriteString(g.colorize(line, color.FgRed))
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "+"):
			b.WriteString(g.colorize(line, color.FgGreen))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(g.colorize(line, color.FgCyan))
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}

// hunks groups changed op indices into [start, end) windows padded with
// context lines; windows that touch are merged.
func (g *Generator) hunks(changed []int, total int) [][2]int {
	var out [][2]int
	for _, idx := range changed {
		start := max(idx-g.contextLines, 0)
		end := min(idx+g.contextLines+1, total)
		if n := len(out); n > 0 && start <= out[n-1][1] {
			out[n-1][1] = max(out[n-1][1], end)
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func hunkRange(before, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", before)
	}
	if count == 1 {
		return fmt.Sprintf("%d", before+1)
	}
	return fmt.Sprintf("%d,%d", before+1, count)
}

func lineOps(oldContent, newContent string) []lineOp {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []lineOp
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			ops = append(ops, lineOp{op: d.Type, text: line})
		}
	}
	return ops
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// colorize applies color to text if color is enabled
func (g *Generator) colorize(text string, colorAttr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(colorAttr).Sprint(text)
}

// isBinary checks if content appears to be binary
func isBinary(content string) bool {
	checkLen := min(len(content), 8000)
	return strings.IndexByte(content[:checkLen], 0) >= 0
}

// Summary returns a short "+N -M" description of a change.
func Summary(c workspace.Change) string {
	switch c.Action {
	case workspace.ActionCreated:
		return fmt.Sprintf("created (+%d)", c.AddedLines)
	case workspace.ActionDeleted:
		return fmt.Sprintf("deleted (-%d)", c.RemovedLines)
	default:
		return fmt.Sprintf("modified (+%d -%d)", c.AddedLines, c.RemovedLines)
	}
}
