package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"labagent/internal/infra/filestore"
	jsonx "labagent/internal/shared/json"
)

// ErrFinalized is returned by Append once the log has been finalized.
var ErrFinalized = errors.New("session log already finalized")

// Record is the persisted form of a session log.
type Record struct {
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	Events    []Event   `json:"events"`
}

// NewID derives a session identifier from the subject and start time.
func NewID(subjectID string, start time.Time) string {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		subjectID = "unknown"
	}
	return subjectID + "-" + start.UTC().Format("20060102-150405")
}

// Persister writes the full encoded record to path. It must replace the
// file atomically.
type Persister func(path string, data []byte) error

func atomicPersister(path string, data []byte) error {
	return filestore.AtomicWrite(path, data, 0o644)
}

// Option customises a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithPersister overrides how the record reaches disk.
func WithPersister(p Persister) Option {
	return func(l *Log) {
		if p != nil {
			l.persist = p
		}
	}
}

// Log is an append-only event log. Every Append rewrites the whole record
// before returning, so the file on disk always holds every acknowledged
// event and never a torn write.
type Log struct {
	mu        sync.Mutex
	path      string
	record    Record
	finalized bool
	now       func() time.Time
	persist   Persister
}

// New prepares a log stored at dir/<sessionID>.json. Nothing is written
// until the first Append.
func New(dir, sessionID string, start time.Time, opts ...Option) (*Log, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if err := filestore.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	l := &Log{
		path: filepath.Join(dir, sessionID+".json"),
		record: Record{
			SessionID: sessionID,
			StartTime: start.UTC(),
			Events:    []Event{},
		},
		now:     func() time.Time { return time.Now().UTC() },
		persist: atomicPersister,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// SessionID returns the identifier of the session being recorded.
func (l *Log) SessionID() string { return l.record.SessionID }

// StartTime returns the session start time.
func (l *Log) StartTime() time.Time { return l.record.StartTime }

// Len reports how many events have been acknowledged.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.record.Events)
}

// Events returns a copy of the acknowledged events.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.record.Events...)
}

// Append records payload and persists the full log. When persisting fails
// the event is not acknowledged and the error must be treated as fatal.
func (l *Log) Append(payload Payload) error {
	if payload == nil {
		return fmt.Errorf("append: nil payload")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized {
		return ErrFinalized
	}
	return l.appendLocked(payload)
}

// Finalize appends session_end and closes the log to further appends.
func (l *Log) Finalize(termination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalized {
		return ErrFinalized
	}
	end := SessionEnd{
		TotalEvents:     len(l.record.Events),
		DurationSeconds: l.now().Sub(l.record.StartTime).Seconds(),
		Termination:     termination,
	}
	if err := l.appendLocked(end); err != nil {
		return err
	}
	l.finalized = true
	return nil
}

func (l *Log) appendLocked(payload Payload) error {
	event := Event{Timestamp: l.now().UTC(), Type: payload.EventType(), Payload: payload}
	next := l.record
	next.Events = append(l.record.Events[:len(l.record.Events):len(l.record.Events)], event)

	data, err := filestore.MarshalJSONIndent(next)
	if err != nil {
		return fmt.Errorf("encode session log: %w", err)
	}
	if err := l.persist(l.path, data); err != nil {
		return fmt.Errorf("persist session log %s: %w", l.path, err)
	}
	l.record = next
	return nil
}

// Load reads a persisted session log.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read session log: %w", err)
	}
	var rec Record
	if err := jsonx.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session log %s: %w", path, err)
	}
	return rec, nil
}

// Termination returns the termination reason recorded by session_end, or ""
// for a log that was never finalized.
func (r Record) Termination() string {
	if n := len(r.Events); n > 0 {
		if end, ok := r.Events[n-1].Payload.(SessionEnd); ok {
			return end.Termination
		}
	}
	return ""
}

// Finalized reports whether the record ends with session_end.
func (r Record) Finalized() bool {
	n := len(r.Events)
	return n > 0 && r.Events[n-1].Type == TypeSessionEnd
}

// Count returns how many events of type t the record holds.
func (r Record) Count(t Type) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}
