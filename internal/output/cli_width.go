package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

// ConstrainOutputWidth truncates every line of text to the width of w when
// w is a terminal.
func ConstrainOutputWidth(text string, w io.Writer) string {
	return ConstrainWidth(text, detectOutputWidth(w))
}

// ConstrainWidth truncates every line of text to width display cells,
// keeping ANSI sequences intact. A non-positive width disables truncation.
func ConstrainWidth(text string, width int) string {
	if text == "" || width <= 0 {
		return text
	}

	parts := strings.SplitAfter(text, "\n")
	for i, part := range parts {
		line := part
		newline := ""
		if strings.HasSuffix(part, "\n") {
			line = strings.TrimSuffix(part, "\n")
			newline = "\n"
		}
		if line == "" {
			parts[i] = part
			continue
		}
		if ansi.StringWidth(line) > width {
			line = ansi.Truncate(line, width, "…")
		}
		parts[i] = line + newline
	}

	return strings.Join(parts, "")
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func detectOutputWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
