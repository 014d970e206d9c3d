// Package filestore lists and loads the session logs kept in a log directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"labagent/internal/infra/filestore"
	"labagent/internal/logging"
	"labagent/internal/session"
)

// Errors returned by Get.
var (
	ErrNotFound  = errors.New("session not found")
	ErrInvalidID = errors.New("invalid session id")
)

// Entry describes one stored session log.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	StartTime time.Time `json:"start_time"`
	Events    int       `json:"events"`
	Finalized bool      `json:"finalized"`
}

// Store reads session logs from a directory.
type Store struct {
	baseDir string
	logger  logging.Logger
}

// New returns a store rooted at baseDir; "~" is expanded.
func New(baseDir string, logger logging.Logger) *Store {
	return &Store{
		baseDir: filestore.ResolvePath(baseDir, ""),
		logger:  logging.OrNop(logger),
	}
}

// Dir returns the resolved log directory.
func (s *Store) Dir() string { return s.baseDir }

// Get loads the log for sessionID.
func (s *Store) Get(ctx context.Context, sessionID string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	sessionID = strings.TrimSuffix(strings.TrimSpace(sessionID), ".json")
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) {
		return session.Record{}, fmt.Errorf("%w %q", ErrInvalidID, sessionID)
	}
	path := filepath.Join(s.baseDir, sessionID+".json")
	if _, err := os.Stat(path); err != nil {
		return session.Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return session.Load(path)
}

// List returns every readable session log, oldest first. Undecodable files
// are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		rec, err := session.Load(path)
		if err != nil {
			s.logger.Warn("Skipping session file %s: %v. Preview: %s", entry.Name(), err, previewFile(path))
			continue
		}
		out = append(out, Entry{
			ID:        rec.SessionID,
			Path:      path,
			StartTime: rec.StartTime,
			Events:    len(rec.Events),
			Finalized: rec.Finalized(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// Latest returns the most recently started session log.
func (s *Store) Latest(ctx context.Context) (session.Record, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return session.Record{}, err
	}
	if len(entries) == 0 {
		return session.Record{}, fmt.Errorf("no session logs in %s", s.baseDir)
	}
	return session.Load(entries[len(entries)-1].Path)
}

func previewFile(path string) string {
	data, err := filestore.ReadFileOrEmpty(path)
	if err != nil {
		return ""
	}
	return previewJSON(data)
}

func previewJSON(data []byte) string {
	const maxPreview = 512
	preview := strings.TrimSpace(string(data))
	preview = strings.ReplaceAll(preview, "\n", " ")
	preview = strings.ReplaceAll(preview, "\t", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "... (truncated)"
	}
	return preview
}
