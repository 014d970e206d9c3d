// Package export renders persisted session logs for humans and tools.
package export

import (
	"fmt"
	"io"
	"strings"

	"labagent/internal/session"
)

// Exporter writes a session record in one format.
type Exporter interface {
	Export(rec session.Record, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// Summary condenses a record into the figures shown by inspect.
type Summary struct {
	SessionID       string         `json:"session_id"`
	SubjectID       string         `json:"subject_id"`
	Model           string         `json:"model"`
	StartTime       string         `json:"start_time"`
	Termination     string         `json:"termination,omitempty"`
	Finalized       bool           `json:"finalized"`
	Events          int            `json:"events"`
	Turns           int            `json:"turns"`
	ToolCalls       int            `json:"tool_calls"`
	ToolErrors      int            `json:"tool_errors"`
	FilesChanged    int            `json:"files_changed"`
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	DurationSeconds float64        `json:"duration_seconds"`
	Tools           map[string]int `json:"tools"`
}

// Summarize walks the events of rec once.
func Summarize(rec session.Record) Summary {
	s := Summary{
		SessionID: rec.SessionID,
		StartTime: rec.StartTime.Format("2006-01-02 15:04:05 MST"),
		Events:    len(rec.Events),
		Finalized: rec.Finalized(),
		Tools:     map[string]int{},
	}
	for _, e := range rec.Events {
		switch p := e.Payload.(type) {
		case session.SessionStart:
			s.SubjectID = p.SubjectID
			s.Model = p.Model
		case session.APIResponse:
			s.Turns = max(s.Turns, p.Turn)
			s.InputTokens += p.Usage.InputTokens
			s.OutputTokens += p.Usage.OutputTokens
		case session.ToolCall:
			s.ToolCalls++
			s.Tools[p.Tool]++
		case session.ToolError:
			s.ToolErrors++
		case session.WorkspaceDiff:
			s.FilesChanged = p.FilesChanged
		case session.SessionEnd:
			s.Termination = p.Termination
			s.DurationSeconds = p.DurationSeconds
		}
	}
	return s
}
