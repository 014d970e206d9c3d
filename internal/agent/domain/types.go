// Package domain runs one agent session: the turn loop between the
// reasoning service and the tool dispatcher, bracketed by workspace
// snapshots and recorded in the session log.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"labagent/internal/agent/ports"
	"labagent/internal/session"
	"labagent/internal/workspace"
)

// Termination reasons recorded in session_end.
const (
	TerminationDone     = "done"
	TerminationMaxTurns = "max_turns_exceeded"
	TerminationAPIError = "api_error"
)

// ErrToolResultMismatch means a turn's tool results do not pair one-to-one,
// in order, with its tool-use blocks.
var ErrToolResultMismatch = errors.New("tool results do not match tool calls")

// Result summarises a finished session.
type Result struct {
	SessionID   string
	LogPath     string
	Termination string
	Turns       int
	Changes     []workspace.Change
	Usage       ports.TokenUsage
	Duration    time.Duration
}

// Snapshotter captures the workspace state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (workspace.Snapshot, error)
}

// EventSink is where dispatchers record their events; the session log
// satisfies it.
type EventSink interface {
	Append(payload session.Payload) error
}

// DispatcherFactory builds the tool dispatcher for one session, bound to
// that session's log.
type DispatcherFactory func(sink EventSink) (ports.ToolDispatcher, error)

// SessionInfo describes a session as it starts.
type SessionInfo struct {
	SessionID string
	SubjectID string
	Model     string
	StartTime time.Time
	Files     int
}

// Narrator prints human-oriented progress. It is not authoritative; the
// session log is.
type Narrator interface {
	SessionStarted(info SessionInfo)
	TurnStarted(turn, maxTurns int)
	Reasoning(text string)
	ToolCall(name string, input json.RawMessage)
	ToolFailed(name, message string)
	Warning(message string)
	APIError(err error)
	SessionFinished(result Result)
}

type nopNarrator struct{}

func (nopNarrator) SessionStarted(SessionInfo)       {}
func (nopNarrator) TurnStarted(int, int)             {}
func (nopNarrator) Reasoning(string)                 {}
func (nopNarrator) ToolCall(string, json.RawMessage) {}
func (nopNarrator) ToolFailed(string, string)        {}
func (nopNarrator) Warning(string)                   {}
func (nopNarrator) APIError(error)                   {}
func (nopNarrator) SessionFinished(Result)           {}
