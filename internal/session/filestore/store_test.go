package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labagent/internal/session"
)

func writeSession(t *testing.T, dir, subject string, start time.Time, finalize bool) string {
	t.Helper()
	id := session.NewID(subject, start)
	log, err := session.New(dir, id, start)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	if err := log.Append(session.Warning{Message: "hello"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if finalize {
		if err := log.Finalize("done"); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
	}
	return id
}

func TestStore_ListOrdersByStartAndSkipsGarbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	later := writeSession(t, dir, "ada", base.Add(time.Hour), true)
	earlier := writeSession(t, dir, "ada", base, false)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := New(dir, nil).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != earlier || entries[1].ID != later {
		t.Fatalf("unexpected order: %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].Finalized || !entries[1].Finalized {
		t.Fatalf("finalized flags wrong: %+v", entries)
	}
	if entries[1].Events != 2 {
		t.Fatalf("expected 2 events in finalized log, got %d", entries[1].Events)
	}
}

func TestStore_GetAndLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	first := writeSession(t, dir, "ada", base, true)
	second := writeSession(t, dir, "ada", base.Add(time.Minute), true)
	store := New(dir, nil)

	rec, err := store.Get(context.Background(), first+".json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.SessionID != first {
		t.Fatalf("expected %s, got %s", first, rec.SessionID)
	}

	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.SessionID != second {
		t.Fatalf("expected latest %s, got %s", second, latest.SessionID)
	}

	if _, err := store.Get(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID for path-like id, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "nope"), nil)
	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
	if _, err := store.Latest(context.Background()); err == nil {
		t.Fatal("expected error for empty store")
	}
}
