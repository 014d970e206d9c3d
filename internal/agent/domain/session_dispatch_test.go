package domain

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labagent/internal/agent/ports"
	"labagent/internal/agent/ports/mocks"
	"labagent/internal/session"
)

func TestToolCallsAreDispatchedInOrder(t *testing.T) {
	root := seedWorkspace(t, nil)
	var requests []ports.CompletionRequest
	client := &mocks.MockLLMClient{
		CompleteFunc: func(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			requests = append(requests, req)
			if len(requests) == 1 {
				return &ports.CompletionResponse{
					StopReason: ports.StopToolUse,
					Content: []ports.ContentBlock{
						call("c1", "list_files", `{"path":"."}`),
						call("c2", "read_file", `{"path":"a"}`),
						call("c3", "run_command", `{"command":"true"}`),
					},
				}, nil
			}
			return &ports.CompletionResponse{StopReason: ports.StopEndTurn}, nil
		},
	}
	dispatcher := &mocks.MockToolDispatcher{
		DefinitionsFunc: func() []ports.ToolDefinition {
			return []ports.ToolDefinition{{Name: "list_files"}}
		},
	}

	rt := newRuntime(t, root, client, 5, func(s *Services) {
		s.NewDispatcher = func(EventSink) (ports.ToolDispatcher, error) { return dispatcher, nil }
	})
	result, err := rt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TerminationDone, result.Termination)
	assert.Equal(t, 2, result.Turns)

	require.Len(t, dispatcher.Calls, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{dispatcher.Calls[0].ID, dispatcher.Calls[1].ID, dispatcher.Calls[2].ID})
	assert.JSONEq(t, `{"path":"a"}`, string(dispatcher.Calls[1].Arguments))

	require.Len(t, requests, 2)
	assert.Equal(t, defaultMaxTokens, requests[0].MaxTokens)
	assert.Equal(t, []ports.ToolDefinition{{Name: "list_files"}}, requests[0].Tools)

	// One combined user message answers all three calls.
	last := requests[1].Messages[len(requests[1].Messages)-1]
	assert.Equal(t, ports.RoleUser, last.Role)
	require.Len(t, last.Content, 3)
	for i, id := range []string{"c1", "c2", "c3"} {
		assert.Equal(t, ports.BlockToolResult, last.Content[i].Type)
		assert.Equal(t, id, last.Content[i].ToolUseID)
	}
}

func TestDispatcherFailureAbortsSession(t *testing.T) {
	root := seedWorkspace(t, nil)
	client := &mocks.MockLLMClient{
		CompleteFunc: func(context.Context, ports.CompletionRequest) (*ports.CompletionResponse, error) {
			return &ports.CompletionResponse{
				StopReason: ports.StopToolUse,
				Content:    []ports.ContentBlock{call("c1", "read_file", `{"path":"a"}`)},
			}, nil
		},
	}
	broken := errors.New("event sink unavailable")
	dispatcher := &mocks.MockToolDispatcher{
		DispatchFunc: func(context.Context, ports.ToolCall) (ports.ToolResult, error) {
			return ports.ToolResult{}, broken
		},
	}

	rt := newRuntime(t, root, client, 5, func(s *Services) {
		s.NewDispatcher = func(EventSink) (ports.ToolDispatcher, error) { return dispatcher, nil }
	})
	_, err := rt.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.Contains(t, err.Error(), "dispatch read_file")

	logs, err := filepath.Glob(filepath.Join(root, "logs", "*.json"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	rec, err := session.Load(logs[0])
	require.NoError(t, err)
	assert.False(t, rec.Finalized())
}

func TestDispatcherFactoryErrorIsReported(t *testing.T) {
	root := seedWorkspace(t, nil)
	rt := newRuntime(t, root, &mocks.MockLLMClient{}, 1, func(s *Services) {
		s.NewDispatcher = func(EventSink) (ports.ToolDispatcher, error) { return nil, errors.New("no root") }
	})
	_, err := rt.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create tool dispatcher")
}
