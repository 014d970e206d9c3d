package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"labagent/internal/logging"
)

const defaultPreviewChars = 10000

// Entry is the recorded state of one regular file.
type Entry struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Size    int64  `json:"size"`
	Preview string `json:"content"`
}

// Snapshot maps workspace-relative paths (forward slashes) to entries. The
// zero value is an empty snapshot.
type Snapshot struct {
	entries map[string]Entry
}

// NewSnapshot builds a snapshot from entries; later duplicates win.
func NewSnapshot(entries ...Entry) Snapshot {
	s := Snapshot{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		s.entries[e.Path] = e
	}
	return s
}

// Len reports the number of files.
func (s Snapshot) Len() int { return len(s.entries) }

// Get returns the entry recorded for path.
func (s Snapshot) Get(path string) (Entry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Paths returns every recorded path in lexical order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns the entries ordered by path.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, p := range s.Paths() {
		out = append(out, s.entries[p])
	}
	return out
}

// Hashes returns path -> fingerprint.
func (s Snapshot) Hashes() map[string]string {
	out := make(map[string]string, len(s.entries))
	for p, e := range s.entries {
		out[p] = e.Hash
	}
	return out
}

// TotalSize sums the byte sizes of all entries.
func (s Snapshot) TotalSize() int64 {
	var total int64
	for _, e := range s.entries {
		total += e.Size
	}
	return total
}

// SnapshotOptions configures a Snapshotter.
type SnapshotOptions struct {
	Root string
	// LogDir is skipped entirely. Relative paths are resolved against Root.
	LogDir       string
	Exclude      []string
	PreviewChars int
	Workers      int
	Logger       logging.Logger
	// OnSkip, if set, is called (possibly concurrently) for each file that
	// could not be read.
	OnSkip func(rel string, err error)
}

// Snapshotter walks a workspace and hashes every regular file in it.
type Snapshotter struct {
	root         string
	logDir       string
	exclude      *ignore.GitIgnore
	previewChars int
	workers      int
	logger       logging.Logger
	onSkip       func(string, error)
}

// NewSnapshotter validates opts and returns a ready Snapshotter.
func NewSnapshotter(opts SnapshotOptions) (*Snapshotter, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("snapshot root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot root: %w", err)
	}

	logDir := strings.TrimSpace(opts.LogDir)
	if logDir != "" {
		if !filepath.IsAbs(logDir) {
			logDir = filepath.Join(root, logDir)
		}
		logDir = filepath.Clean(logDir)
	}

	s := &Snapshotter{
		root:         root,
		logDir:       logDir,
		previewChars: opts.PreviewChars,
		workers:      opts.Workers,
		logger:       logging.OrNop(opts.Logger),
		onSkip:       opts.OnSkip,
	}
	if s.previewChars <= 0 {
		s.previewChars = defaultPreviewChars
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if len(opts.Exclude) > 0 {
		s.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return s, nil
}

// Root returns the absolute workspace root.
func (s *Snapshotter) Root() string { return s.root }

// Snapshot records every regular file under the root except the log
// directory and excluded patterns. Files that vanish or cannot be read
// mid-walk are left out of the snapshot.
func (s *Snapshotter) Snapshot(ctx context.Context) (Snapshot, error) {
	if info, err := os.Stat(s.root); err != nil {
		return Snapshot{}, fmt.Errorf("stat workspace: %w", err)
	} else if !info.IsDir() {
		return Snapshot{}, fmt.Errorf("workspace %s is not a directory", s.root)
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			s.logger.Warn("snapshot: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == s.root {
			return nil
		}
		if d.IsDir() {
			if s.logDir != "" && path == s.logDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if s.exclude != nil && s.exclude.MatchesPath(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("walk workspace: %w", err)
	}

	entries := make([]*Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
			if err != nil {
				s.logger.Warn("snapshot: cannot read %s: %v", rel, err)
				if s.onSkip != nil {
					s.onSkip(rel, err)
				}
				return nil
			}
			entries[i] = &Entry{
				Path:    rel,
				Hash:    HashBytes(data),
				Size:    int64(len(data)),
				Preview: Preview(data, s.previewChars),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("hash workspace: %w", err)
	}

	snap := Snapshot{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e != nil {
			snap.entries[e.Path] = *e
		}
	}
	return snap, nil
}

// Preview decodes data as UTF-8, replacing invalid sequences with U+FFFD,
// and keeps at most limit characters.
func Preview(data []byte, limit int) string {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	return TruncateChars(text, limit)
}

// TruncateChars keeps the first limit characters of s. A non-positive limit
// returns s unchanged.
func TruncateChars(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// TailChars keeps the last limit characters of s.
func TailChars(s string, limit int) string {
	count := utf8.RuneCountInString(s)
	if limit <= 0 || count <= limit {
		return s
	}
	skip := count - limit
	n := 0
	for i := range s {
		if n == skip {
			return s[i:]
		}
		n++
	}
	return ""
}
