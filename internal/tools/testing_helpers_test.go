package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"labagent/internal/agent/ports"
	"labagent/internal/session"
)

type recordingSink struct {
	events []session.Payload
	failAt int // 1-based append number that fails; 0 never fails
}

func (s *recordingSink) Append(p session.Payload) error {
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.events = append(s.events, p)
	return nil
}

func (s *recordingSink) types() []session.Type {
	out := make([]session.Type, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType())
	}
	return out
}

func newTestDispatcher(t *testing.T, cfg Config) (*Dispatcher, *recordingSink, string) {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	sink, _ := cfg.Sink.(*recordingSink)
	if sink == nil {
		sink = &recordingSink{}
		cfg.Sink = sink
	}
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)
	return d, sink, d.guard.Root()
}

func dispatch(t *testing.T, d *Dispatcher, id, name, args string) ports.ToolResult {
	t.Helper()
	res, err := d.Dispatch(context.Background(), ports.ToolCall{ID: id, Name: name, Arguments: []byte(args)})
	require.NoError(t, err)
	require.Equal(t, id, res.CallID)
	return res
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
