// Package session implements the append-only, durably persisted session log.
package session

import (
	"bytes"
	"fmt"
	"time"

	jsonx "labagent/internal/shared/json"
	"labagent/internal/workspace"
)

// Type tags an Event.
type Type string

const (
	TypeSessionStart  Type = "session_start"
	TypePrompt        Type = "prompt"
	TypeAPIResponse   Type = "api_response"
	TypeReasoning     Type = "reasoning"
	TypeToolCall      Type = "tool_call"
	TypeToolResult    Type = "tool_result"
	TypeToolError     Type = "tool_error"
	TypeFileEdit      Type = "file_edit"
	TypeCommandExec   Type = "command_exec"
	TypeWebSearch     Type = "web_search"
	TypeWarning       Type = "warning"
	TypeAPIError      Type = "api_error"
	TypeWorkspaceDiff Type = "workspace_diff"
	TypeSessionEnd    Type = "session_end"
)

// Payload is the type-specific body of an Event. The set of implementations
// is closed: one struct per Type.
type Payload interface {
	EventType() Type
}

type SessionStart struct {
	SubjectID         string            `json:"subject_id"`
	Model             string            `json:"model"`
	WorkspaceSnapshot map[string]string `json:"workspace_snapshot"`
}

type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Usage is the token accounting reported by the reasoning service.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlock mirrors one block of a service response.
type ContentBlock struct {
	Type  string           `json:"type"`
	Text  string           `json:"text,omitempty"`
	ID    string           `json:"id,omitempty"`
	Name  string           `json:"name,omitempty"`
	Input jsonx.RawMessage `json:"input,omitempty"`
}

type APIResponse struct {
	Turn       int            `json:"turn"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
	Content    []ContentBlock `json:"content"`
}

type Reasoning struct {
	Text string `json:"text"`
}

type ToolCall struct {
	Tool  string           `json:"tool"`
	ID    string           `json:"id,omitempty"`
	Input jsonx.RawMessage `json:"input"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	ID     string `json:"id,omitempty"`
	Result string `json:"result"`
}

type ToolError struct {
	Tool  string `json:"tool"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// FileEdit records a write_file call. Before is "[NEW FILE]" when the file
// did not exist.
type FileEdit struct {
	Path       string `json:"path"`
	Before     string `json:"before"`
	After      string `json:"after"`
	BeforeHash string `json:"before_hash"`
	AfterHash  string `json:"after_hash"`
}

type CommandExec struct {
	Command string `json:"command"`
}

type WebSearch struct {
	Query string `json:"query"`
}

type Warning struct {
	Message string `json:"message"`
}

type APIError struct {
	Error     string `json:"error"`
	Turn      int    `json:"turn"`
	Kind      string `json:"kind,omitempty"`
	Transient bool   `json:"transient"`
}

type WorkspaceDiff struct {
	FilesChanged int                `json:"files_changed"`
	Changes      []workspace.Change `json:"changes"`
}

// SessionEnd closes the log. TotalEvents counts the events recorded before it.
type SessionEnd struct {
	TotalEvents     int     `json:"total_events"`
	DurationSeconds float64 `json:"duration_seconds"`
	Termination     string  `json:"termination,omitempty"`
}

func (SessionStart) EventType() Type  { return TypeSessionStart }
func (Prompt) EventType() Type        { return TypePrompt }
func (APIResponse) EventType() Type   { return TypeAPIResponse }
func (Reasoning) EventType() Type     { return TypeReasoning }
func (ToolCall) EventType() Type      { return TypeToolCall }
func (ToolResult) EventType() Type    { return TypeToolResult }
func (ToolError) EventType() Type     { return TypeToolError }
func (FileEdit) EventType() Type      { return TypeFileEdit }
func (CommandExec) EventType() Type   { return TypeCommandExec }
func (WebSearch) EventType() Type     { return TypeWebSearch }
func (Warning) EventType() Type       { return TypeWarning }
func (APIError) EventType() Type      { return TypeAPIError }
func (WorkspaceDiff) EventType() Type { return TypeWorkspaceDiff }
func (SessionEnd) EventType() Type    { return TypeSessionEnd }

func newPayload(t Type) (Payload, error) {
	switch t {
	case TypeSessionStart:
		return &SessionStart{}, nil
	case TypePrompt:
		return &Prompt{}, nil
	case TypeAPIResponse:
		return &APIResponse{}, nil
	case TypeReasoning:
		return &Reasoning{}, nil
	case TypeToolCall:
		return &ToolCall{}, nil
	case TypeToolResult:
		return &ToolResult{}, nil
	case TypeToolError:
		return &ToolError{}, nil
	case TypeFileEdit:
		return &FileEdit{}, nil
	case TypeCommandExec:
		return &CommandExec{}, nil
	case TypeWebSearch:
		return &WebSearch{}, nil
	case TypeWarning:
		return &Warning{}, nil
	case TypeAPIError:
		return &APIError{}, nil
	case TypeWorkspaceDiff:
		return &WorkspaceDiff{}, nil
	case TypeSessionEnd:
		return &SessionEnd{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}

// Event is one immutable, timestamped record in the log. On disk it is a
// flat object: timestamp, type, then the payload fields.
type Event struct {
	Timestamp time.Time
	Type      Type
	Payload   Payload
}

type eventHeader struct {
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
}

// MarshalJSON inlines the payload fields after the header.
func (e Event) MarshalJSON() ([]byte, error) {
	header, err := jsonx.Marshal(eventHeader{Timestamp: e.Timestamp, Type: e.Type})
	if err != nil {
		return nil, err
	}
	if e.Payload == nil {
		return header, nil
	}
	body, err := jsonx.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s payload is not an object", e.Type)
	}
	if bytes.Equal(body, []byte("{}")) {
		return header, nil
	}

	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header[:len(header)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON restores the typed payload selected by the type tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var header eventHeader
	if err := jsonx.Unmarshal(data, &header); err != nil {
		return err
	}
	payload, err := newPayload(header.Type)
	if err != nil {
		return err
	}
	if err := jsonx.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", header.Type, err)
	}
	e.Timestamp = header.Timestamp
	e.Type = header.Type
	e.Payload = deref(payload)
	return nil
}

// deref turns the pointer produced by newPayload back into the value form
// used by callers of Append.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *SessionStart:
		return *v
	case *Prompt:
		return *v
	case *APIResponse:
		return *v
	case *Reasoning:
		return *v
	case *ToolCall:
		return *v
	case *ToolResult:
		return *v
	case *ToolError:
		return *v
	case *FileEdit:
		return *v
	case *CommandExec:
		return *v
	case *WebSearch:
		return *v
	case *Warning:
		return *v
	case *APIError:
		return *v
	case *WorkspaceDiff:
		return *v
	case *SessionEnd:
		return *v
	}
	return p
}
