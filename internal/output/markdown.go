package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders markdown for terminal display.
type MarkdownRenderer interface {
	Render(string) (string, error)
}

type plainMarkdown struct{}

func (plainMarkdown) Render(s string) (string, error) { return s, nil }

// NewMarkdownRenderer returns a glamour renderer when w is a terminal (or
// GLAMOUR_STYLE is set) and a pass-through renderer otherwise.
func NewMarkdownRenderer(w io.Writer) MarkdownRenderer {
	options := []glamour.TermRendererOption{
		glamour.WithWordWrap(100),
		glamour.WithPreservedNewLines(),
	}

	if value, ok := os.LookupEnv("GLAMOUR_STYLE"); ok && strings.TrimSpace(value) != "" {
		options = append(options, glamour.WithEnvironmentConfig())
	} else if IsTerminal(w) {
		options = append(options, glamour.WithAutoStyle())
	} else {
		return plainMarkdown{}
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return plainMarkdown{}
	}
	return renderer
}
