package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned for paths that resolve outside the workspace.
var ErrAccessDenied = errors.New("path outside workspace")

// PathGuard resolves tool paths against a canonical workspace root.
// Symlinks are evaluated on the root and on the deepest existing ancestor of
// each target, so a link inside the workspace cannot point a tool outside
// it. Races between the check and the file operation are not handled.
type PathGuard struct {
	root string
}

// NewPathGuard canonicalises root, which must exist.
func NewPathGuard(root string) (*PathGuard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &PathGuard{root: canonical}, nil
}

// Root returns the canonical workspace root.
func (g *PathGuard) Root() string { return g.root }

// Resolve maps raw (relative to the root, or absolute) to a canonical
// absolute path inside the root.
func (g *PathGuard) Resolve(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	candidate := trimmed
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(g.root, candidate)
	}
	resolved, err := canonicalize(filepath.Clean(candidate))
	if err != nil {
		return "", err
	}
	if !pathWithinBase(g.root, resolved) {
		return "", ErrAccessDenied
	}
	return resolved, nil
}

// Rel returns path relative to the root with forward slashes.
func (g *PathGuard) Rel(path string) string {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// canonicalize evaluates symlinks on the longest existing prefix of path and
// re-attaches the components that do not exist yet.
func canonicalize(path string) (string, error) {
	existing := path
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append(rest, filepath.Base(existing))
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// Dangling or looping symlink; its target cannot be judged.
		return "", ErrAccessDenied
	}
	for i := len(rest) - 1; i >= 0; i-- {
		real = filepath.Join(real, rest[i])
	}
	return real, nil
}

func pathWithinBase(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false
	}
	return !filepath.IsAbs(rel)
}
