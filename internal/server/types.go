package server

import (
	"labagent/internal/session"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	LogDir  string `json:"log_dir"`
}

// Stream message types.
const (
	StreamEvent = "event"
	StreamEnd   = "end"
	StreamError = "error"
)

// StreamMessage is one websocket frame of /api/sessions/:id/stream.
type StreamMessage struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id"`
	Event       *session.Event `json:"event,omitempty"`
	Termination string         `json:"termination,omitempty"`
	Error       string         `json:"error,omitempty"`
}
