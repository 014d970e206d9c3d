package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labagent/internal/session"
	jsonx "labagent/internal/shared/json"
)

func TestRunDryRunRecordsSession(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, map[string]string{
		"SOUL.md":    "be curious",
		"JOURNAL.md": "day one",
	})

	stdout, _, err := executeCommand(t, "run", "--dry-run", "--workspace", ws, "--subject", "lab7")
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Session lab7-")
	assert.Contains(t, stdout, "Dry run")

	logs := sessionLogs(t, filepath.Join(ws, "logs"))
	require.Len(t, logs, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(logs[0]), "lab7-"))

	rec, err := session.Load(logs[0])
	require.NoError(t, err)
	assert.Equal(t, "done", rec.Termination())
	assert.Equal(t, 1, rec.Count(session.TypeAPIResponse))
	assert.Equal(t, 0, rec.Count(session.TypeToolCall))
}

func TestRunSubjectFromEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SUBJECT_ID", "envsubject")
	ws := newWorkspace(t, nil)

	_, _, err := executeCommand(t, "run", "--dry-run", "-w", ws, "--log-dir", "audit")
	require.NoError(t, err)

	logs := sessionLogs(t, filepath.Join(ws, "audit"))
	require.Len(t, logs, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(logs[0]), "envsubject-"))
}

func TestRunWritesMetricsFile(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, map[string]string{"AGENTS.md": "rules"})
	metricsPath := filepath.Join(t.TempDir(), "metrics", "labagent.prom")

	_, _, err := executeCommand(t, "run", "--dry-run", "-w", ws, "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := strings.ReplaceAll(string(data), ".", "_")
	assert.Contains(t, text, "labagent_workspace_files")
	assert.Contains(t, text, "labagent_sessions")
}

func TestRunAPIErrorExitCode(t *testing.T) {
	isolateEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
	}))
	defer server.Close()
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("ANTHROPIC_BASE_URL", server.URL)
	ws := newWorkspace(t, nil)

	_, _, err := executeCommand(t, "run", "-w", ws, "--subject", "broken")
	require.Error(t, err)

	var exitErr *ExitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitAPIError, exitErr.Code)

	logs := sessionLogs(t, filepath.Join(ws, "logs"))
	require.Len(t, logs, 1)
	rec, err := session.Load(logs[0])
	require.NoError(t, err)
	assert.Equal(t, "api_error", rec.Termination())
	assert.Equal(t, 1, rec.Count(session.TypeAPIError))
}

func TestRunWithoutAPIKeyFails(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, nil)

	_, _, err := executeCommand(t, "run", "-w", ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
	assert.Empty(t, sessionLogs(t, filepath.Join(ws, "logs")))
}

func TestInvalidBudgetIsRejected(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LAB_MAX_TURNS", "-1")
	ws := newWorkspace(t, nil)

	_, _, err := executeCommand(t, "run", "--dry-run", "-w", ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_turns must be positive")
}

func TestInspectSummaryAndExports(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, map[string]string{"SOUL.md": "x"})
	_, _, err := executeCommand(t, "run", "--dry-run", "-w", ws, "--subject", "insp")
	require.NoError(t, err)
	logs := sessionLogs(t, filepath.Join(ws, "logs"))
	require.Len(t, logs, 1)
	id := strings.TrimSuffix(filepath.Base(logs[0]), ".json")

	summary, _, err := executeCommand(t, "inspect", "--latest", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, summary, id)
	assert.Contains(t, summary, "Termination")
	assert.Contains(t, summary, "done")

	byID, _, err := executeCommand(t, "inspect", id, "-w", ws, "--format", "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, jsonx.Unmarshal([]byte(byID), &decoded))
	assert.Equal(t, id, decoded["session_id"])

	byPath, _, err := executeCommand(t, "inspect", logs[0], "-w", ws, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, byPath, id)

	_, _, err = executeCommand(t, "inspect", "-w", ws)
	require.Error(t, err)

	_, _, err = executeCommand(t, "inspect", id, "-w", ws, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestSessionsList(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, nil)

	empty, _, err := executeCommand(t, "sessions", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, empty, "No sessions found")

	_, _, err = executeCommand(t, "run", "--dry-run", "-w", ws, "--subject", "listed")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "logs", "garbage.json"), []byte("{"), 0o644))

	out, _, err := executeCommand(t, "sessions", "list", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "listed-")
	assert.Contains(t, out, "finalized")
	assert.Contains(t, out, "1 session(s)")
}

func TestSnapshotCommand(t *testing.T) {
	isolateEnv(t)
	ws := newWorkspace(t, map[string]string{
		"a.txt":         "hello",
		"logs/old.json": "{}",
	})

	out, _, err := executeCommand(t, "snapshot", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.NotContains(t, out, "old.json")
	assert.Contains(t, out, "1 file(s), 5 B")

	raw, _, err := executeCommand(t, "snapshot", "-w", ws, "--json")
	require.NoError(t, err)
	var hashes map[string]string
	require.NoError(t, jsonx.Unmarshal([]byte(raw), &hashes))
	assert.Equal(t, map[string]string{
		"a.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
	}, hashes)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestResolveVersionPrefersEnv(t *testing.T) {
	t.Setenv("LABAGENT_VERSION", "v9.9.9")
	assert.Equal(t, "v9.9.9", resolveVersion())
}

func TestExitCodeError(t *testing.T) {
	inner := errors.New("boom")
	err := &ExitCodeError{Code: 2, Err: inner}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)

	var nilErr *ExitCodeError
	assert.Equal(t, "", nilErr.Error())
	assert.NoError(t, nilErr.Unwrap())
}
