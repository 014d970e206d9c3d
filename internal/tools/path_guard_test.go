package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathGuardResolve(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeTestFile(t, parent, "ws2/secret.txt", "nope")

	guard, err := NewPathGuard(root)
	require.NoError(t, err)
	canonicalRoot := guard.Root()

	resolved, err := guard.Resolve("notes/new/deep.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(canonicalRoot, "notes", "new", "deep.txt"), resolved)

	resolved, err = guard.Resolve(".")
	require.NoError(t, err)
	assert.Equal(t, canonicalRoot, resolved)

	_, err = guard.Resolve(filepath.Join(root, "inside.txt"))
	assert.NoError(t, err)

	for _, raw := range []string{
		"../escape.txt",
		"notes/../../escape.txt",
		"../ws2/secret.txt",
		filepath.Join(parent, "ws2", "secret.txt"),
		"/etc/passwd",
	} {
		_, err := guard.Resolve(raw)
		assert.ErrorIs(t, err, ErrAccessDenied, raw)
	}
}

func TestPathGuardRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTestFile(t, outside, "secret.txt", "classified")

	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "dangling")))

	guard, err := NewPathGuard(root)
	require.NoError(t, err)

	for _, raw := range []string{"link/secret.txt", "link/new.txt", "link", "dangling", "dangling/child.txt"} {
		_, err := guard.Resolve(raw)
		assert.ErrorIs(t, err, ErrAccessDenied, raw)
	}
}

func TestPathGuardAllowsInternalSymlink(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "real/file.txt", "x")
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	guard, err := NewPathGuard(root)
	require.NoError(t, err)

	resolved, err := guard.Resolve("alias/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "real/file.txt", guard.Rel(resolved))
}

func TestNewPathGuardRequiresExistingRoot(t *testing.T) {
	_, err := NewPathGuard(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
