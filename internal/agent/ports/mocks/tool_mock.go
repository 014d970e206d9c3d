package mocks

import (
	"context"

	"labagent/internal/agent/ports"
)

// MockToolDispatcher records every call it receives.
type MockToolDispatcher struct {
	DefinitionsFunc func() []ports.ToolDefinition
	DispatchFunc    func(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error)
	Calls           []ports.ToolCall
}

func (m *MockToolDispatcher) Definitions() []ports.ToolDefinition {
	if m.DefinitionsFunc != nil {
		return m.DefinitionsFunc()
	}
	return nil
}

func (m *MockToolDispatcher) Dispatch(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error) {
	m.Calls = append(m.Calls, call)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, call)
	}
	return ports.ToolResult{CallID: call.ID, Content: "Mock result"}, nil
}
