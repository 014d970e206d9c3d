package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv keeps the developer's environment and config files out of
// config resolution.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"SUBJECT_ID", "MODEL", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL",
		"LAB_WORKSPACE", "LAB_LOG_DIR", "LAB_SUBJECT_ID", "LAB_MODEL",
		"LAB_MAX_TURNS", "LAB_MAX_TOKENS", "LAB_METRICS_FILE",
		"LAB_ANTHROPIC_API_KEY", "LAB_ANTHROPIC_BASE_URL", "LAB_LOGGING_FILE",
		"GLAMOUR_STYLE",
	} {
		t.Setenv(name, "")
	}
}

func newWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func sessionLogs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	return matches
}
