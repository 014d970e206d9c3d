package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labagent/internal/observability"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format) }

func (r *recordingLogger) add(level, format string) {
	r.lines = append(r.lines, level+" "+format)
}

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *recordingLogger
	var logger Logger = typed
	if !isNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if isNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base, err := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger := FromObservabilityWithComponent(base, "test")
	logger.Info("hello %s", "world")
	logger.Debug("hidden %d", 1)

	if want := "hello world"; !strings.Contains(buf.String(), want) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if !strings.Contains(buf.String(), "component=test") {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("expected debug record to be filtered at info level")
	}
}

func TestObservabilityFileFanout(t *testing.T) {
	console := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "logs", "labagent.log")
	base, err := observability.NewLogger(observability.LogConfig{
		Level:  "warn",
		Output: console,
		File:   path,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { _ = base.Close() })

	logger := FromObservabilityWithComponent(base, "runtime")
	logger.Debug("turn %d", 3)

	if console.Len() != 0 {
		t.Fatalf("expected console to filter debug records, got %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"turn 3"`) {
		t.Fatalf("expected debug record in file sink, got %q", data)
	}
}

func TestWithContextTagsSessionRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	base, err := observability.NewLogger(observability.LogConfig{Level: "info", Output: buf})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	ctx := observability.ContextWithSessionID(context.Background(), "ada-20250101-120000")

	WithContext(ctx, FromObservabilityWithComponent(base, "runtime")).Info("turn %d", 1)
	if !strings.Contains(buf.String(), "session_id=ada-20250101-120000") {
		t.Fatalf("expected session_id attribute, got %q", buf.String())
	}

	rec := &recordingLogger{}
	WithContext(ctx, rec).Warn("disk low")
	if len(rec.lines) != 1 || rec.lines[0] != "WARN [ada-20250101-120000] disk low" {
		t.Fatalf("expected prefixed record, got %v", rec.lines)
	}

	plain := &recordingLogger{}
	if WithContext(context.Background(), plain) != Logger(plain) {
		t.Fatalf("expected logger without session to be returned unchanged")
	}
	if _, ok := WithContext(ctx, nil).(nopLogger); !ok {
		t.Fatalf("expected nil logger to become a no-op logger")
	}
}
