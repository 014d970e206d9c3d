package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"labagent/internal/session"
	"labagent/internal/workspace"
)

const (
	newFileMarker    = "[NEW FILE]"
	accessDeniedText = "Error: Access denied - path outside workspace"
)

func (d *Dispatcher) resolve(raw string) (string, *result) {
	path, err := d.guard.Resolve(raw)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, ErrAccessDenied) {
		r := fail(accessDeniedText, fmt.Errorf("access denied: %s", raw))
		return "", &r
	}
	r := fail(fmt.Sprintf("Error: %v", err), err)
	return "", &r
}

func (d *Dispatcher) readFile(c ReadFile) result {
	path, denied := d.resolve(c.Path)
	if denied != nil {
		return *denied
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fail("Error: File not found: "+c.Path, err)
		}
		return fail(fmt.Sprintf("Error executing %s: %v", NameReadFile, err), err)
	}
	return ok(strings.ToValidUTF8(string(data), "\uFFFD"))
}

func (d *Dispatcher) writeFile(c WriteFile) (result, error) {
	path, denied := d.resolve(c.Path)
	if denied != nil {
		return *denied, nil
	}

	before, beforeHash := newFileMarker, workspace.NotFound
	if data, err := os.ReadFile(path); err == nil {
		before = strings.ToValidUTF8(string(data), "\uFFFD")
		beforeHash = workspace.HashBytes(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(fmt.Sprintf("Error executing %s: %v", NameWriteFile, err), err), nil
	}

	after := *c.Content
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(fmt.Sprintf("Error executing %s: %v", NameWriteFile, err), err), nil
	}
	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return fail(fmt.Sprintf("Error executing %s: %v", NameWriteFile, err), err), nil
	}

	if err := d.sink.Append(session.FileEdit{
		Path:       c.Path,
		Before:     before,
		After:      after,
		BeforeHash: beforeHash,
		AfterHash:  workspace.HashString(after),
	}); err != nil {
		return result{}, err
	}
	return ok(fmt.Sprintf("Successfully wrote %d bytes to %s", len(after), c.Path)), nil
}

func (d *Dispatcher) listFiles(c ListFiles) result {
	dir, denied := d.resolve(c.Directory)
	if denied != nil {
		return *denied
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fail("Directory not found: "+c.Directory, err)
	}
	if !info.IsDir() {
		return fail("Error: Not a directory: "+c.Directory, fmt.Errorf("not a directory: %s", c.Directory))
	}

	var lines []string
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		lines = append(lines, fmt.Sprintf("  %s (%d bytes)", d.guard.Rel(path), info.Size()))
		return nil
	})
	if err != nil {
		return fail(fmt.Sprintf("Error executing %s: %v", NameListFiles, err), err)
	}
	if len(lines) == 0 {
		return ok("(empty)")
	}
	return ok(strings.Join(lines, "\n"))
}
