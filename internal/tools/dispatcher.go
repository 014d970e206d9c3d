package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labagent/internal/agent/ports"
	"labagent/internal/logging"
	"labagent/internal/session"
	jsonx "labagent/internal/shared/json"
	"labagent/internal/workspace"
)

const (
	defaultCommandTimeout = 60 * time.Second
	defaultResultChars    = 2000
)

// EventSink receives the audit events emitted while dispatching. An error
// from Append is fatal to the session.
type EventSink interface {
	Append(payload session.Payload) error
}

// Config wires a Dispatcher.
type Config struct {
	Root           string
	Sink           EventSink
	CommandTimeout time.Duration
	// ResultChars bounds the result text recorded in tool_result events.
	ResultChars int
	Searcher    Searcher
	Logger      logging.Logger
}

// Dispatcher executes tool calls sequentially against one workspace.
type Dispatcher struct {
	guard          *PathGuard
	sink           EventSink
	commandTimeout time.Duration
	resultChars    int
	searcher       Searcher
	logger         logging.Logger
}

var _ ports.ToolDispatcher = (*Dispatcher)(nil)

// NewDispatcher validates cfg and returns a dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	guard, err := NewPathGuard(cfg.Root)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		guard:          guard,
		sink:           cfg.Sink,
		commandTimeout: cfg.CommandTimeout,
		resultChars:    cfg.ResultChars,
		searcher:       cfg.Searcher,
		logger:         logging.OrNop(cfg.Logger),
	}
	if d.commandTimeout <= 0 {
		d.commandTimeout = defaultCommandTimeout
	}
	if d.resultChars <= 0 {
		d.resultChars = defaultResultChars
	}
	return d, nil
}

// Definitions returns the fixed tool schema.
func (d *Dispatcher) Definitions() []ports.ToolDefinition {
	return Definitions()
}

// result is the outcome of one tool. failure is set when the tool did not
// do what was asked; text is returned to the reasoning service either way.
type result struct {
	text    string
	failure error
}

func ok(text string) result { return result{text: text} }

func fail(text string, err error) result {
	if err == nil {
		err = errors.New(text)
	}
	return result{text: text, failure: err}
}

// Dispatch records tool_call, runs the call and records tool_result (and
// tool_error on failure). The returned error is non-nil only when the
// session log could not be written.
func (d *Dispatcher) Dispatch(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error) {
	if err := d.sink.Append(session.ToolCall{Tool: call.Name, ID: call.ID, Input: loggableInput(call.Arguments)}); err != nil {
		return ports.ToolResult{}, err
	}

	start := time.Now()
	res, err := d.run(ctx, call)
	if err != nil {
		return ports.ToolResult{}, err
	}

	if res.failure != nil {
		d.logger.Warn("tool %s failed: %v", call.Name, res.failure)
		if err := d.sink.Append(session.ToolError{Tool: call.Name, ID: call.ID, Error: res.failure.Error()}); err != nil {
			return ports.ToolResult{}, err
		}
	}
	if err := d.sink.Append(session.ToolResult{
		Tool:   call.Name,
		ID:     call.ID,
		Result: workspace.TruncateChars(res.text, d.resultChars),
	}); err != nil {
		return ports.ToolResult{}, err
	}
	d.logger.Debug("tool %s finished in %s (%d chars)", call.Name, time.Since(start).Round(time.Millisecond), len(res.text))

	return ports.ToolResult{CallID: call.ID, Content: res.text, Error: res.failure}, nil
}

func (d *Dispatcher) run(ctx context.Context, call ports.ToolCall) (res result, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Sprintf("Error executing %s: %v", call.Name, r), fmt.Errorf("panic: %v", r))
			fatal = nil
		}
	}()

	c, err := Decode(call.Name, call.Arguments)
	if err != nil {
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			return fail(unknown.Error(), err), nil
		}
		return fail(fmt.Sprintf("Error executing %s: %v", call.Name, err), err), nil
	}
	return d.execute(ctx, c)
}

func (d *Dispatcher) execute(ctx context.Context, c Call) (result, error) {
	switch c := c.(type) {
	case ReadFile:
		return d.readFile(c), nil
	case WriteFile:
		return d.writeFile(c)
	case ListFiles:
		return d.listFiles(c), nil
	case RunCommand:
		return d.runCommand(ctx, c)
	case WebSearch:
		return d.webSearch(ctx, c)
	}
	panic(fmt.Sprintf("unhandled tool call %T", c))
}

// loggableInput keeps the arguments as JSON in the session log even when
// the service sent something malformed.
func loggableInput(raw []byte) jsonx.RawMessage {
	if len(raw) == 0 {
		return jsonx.RawMessage("{}")
	}
	if jsonx.Valid(raw) {
		return jsonx.Compact(raw)
	}
	quoted, err := jsonx.Marshal(string(raw))
	if err != nil {
		return jsonx.RawMessage("{}")
	}
	return quoted
}
