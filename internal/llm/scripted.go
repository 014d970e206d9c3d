package llm

import (
	"context"
	"fmt"
	"sync"

	"labagent/internal/agent/ports"
)

// Step is one scripted reply: either a response or an error.
type Step struct {
	Response *ports.CompletionResponse
	Err      error
}

// ScriptedClient replays a fixed sequence of replies. Once the script runs
// out it keeps returning the Repeat step, or an error when Repeat is nil.
// It stands in for the reasoning service in tests and dry runs.
type ScriptedClient struct {
	mu       sync.Mutex
	model    string
	steps    []Step
	repeat   *Step
	requests []ports.CompletionRequest
}

// NewScriptedClient returns a client that replays steps in order.
func NewScriptedClient(model string, steps ...Step) *ScriptedClient {
	if model == "" {
		model = "scripted"
	}
	return &ScriptedClient{model: model, steps: steps}
}

// RepeatForever makes the client answer every call past the script with step.
func (c *ScriptedClient) RepeatForever(step Step) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = &step
	return c
}

func (c *ScriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, cloneRequest(req))
	idx := len(c.requests) - 1

	var step Step
	switch {
	case idx < len(c.steps):
		step = c.steps[idx]
	case c.repeat != nil:
		step = *c.repeat
	default:
		return nil, fmt.Errorf("scripted client: no reply for call %d", idx+1)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Response == nil {
		return nil, fmt.Errorf("scripted client: step %d has no response", idx+1)
	}
	resp := *step.Response
	resp.Content = append([]ports.ContentBlock(nil), step.Response.Content...)
	return &resp, nil
}

func (c *ScriptedClient) Model() string {
	return c.model
}

// Requests returns every request received so far.
func (c *ScriptedClient) Requests() []ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.CompletionRequest(nil), c.requests...)
}

// cloneRequest copies the message slices so later appends by the caller do
// not alter what was recorded.
func cloneRequest(req ports.CompletionRequest) ports.CompletionRequest {
	msgs := make([]ports.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ports.Message{Role: m.Role, Content: append([]ports.ContentBlock(nil), m.Content...)}
	}
	req.Messages = msgs
	return req
}

// EndTurn builds a response that finishes the session with optional text.
func EndTurn(text string, usage ports.TokenUsage) *ports.CompletionResponse {
	resp := &ports.CompletionResponse{StopReason: ports.StopEndTurn, Usage: usage}
	if text != "" {
		resp.Content = []ports.ContentBlock{ports.TextBlock(text)}
	}
	return resp
}

// ToolUse builds a response requesting the given tool calls, preceded by
// optional reasoning text.
func ToolUse(text string, usage ports.TokenUsage, calls ...ports.ContentBlock) *ports.CompletionResponse {
	resp := &ports.CompletionResponse{StopReason: ports.StopToolUse, Usage: usage}
	if text != "" {
		resp.Content = append(resp.Content, ports.TextBlock(text))
	}
	resp.Content = append(resp.Content, calls...)
	return resp
}
