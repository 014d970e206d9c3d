package ports

import (
	"context"
	"encoding/json"
)

// ToolDispatcher executes tool calls requested by the reasoning service.
type ToolDispatcher interface {
	// Definitions returns the fixed tool schema sent with every request.
	Definitions() []ToolDefinition

	// Dispatch runs one call. Tool failures are reported in the result, never
	// as an error; an error means the session cannot continue.
	Dispatch(ctx context.Context, call ToolCall) (ToolResult, error)
}

// ToolCall represents a request to execute a tool
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the execution result
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	// Error is set when the tool failed; Content then carries its text form.
	Error error `json:"-"`
}

// ToolDefinition describes a tool for the LLM
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines tool parameters (JSON Schema format)
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}
