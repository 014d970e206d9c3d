package logging

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"labagent/internal/observability"
)

// Logger defines a minimal, printf-style logging contract.
//
// Runtime packages depend on this interface so tests can pass Nop() without
// constructing a slog pipeline.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

func isNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if isNil(logger) {
		return Nop()
	}
	return logger
}

type observabilityPrintfLogger struct {
	logger *observability.Logger
}

// FromObservabilityWithComponent wraps an observability logger and preserves
// printf-style call sites by formatting the message before emitting it.
func FromObservabilityWithComponent(logger *observability.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	scoped := logger
	if component != "" {
		scoped = scoped.With("component", component)
	}
	return &observabilityPrintfLogger{logger: scoped}
}

func (l *observabilityPrintfLogger) Debug(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *observabilityPrintfLogger) Info(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *observabilityPrintfLogger) Warn(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *observabilityPrintfLogger) Error(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// WithContext scopes logger to the session carried by ctx. Records from the
// slog adapter gain a session_id attribute; other loggers get the id as a
// message prefix.
func WithContext(ctx context.Context, logger Logger) Logger {
	logger = OrNop(logger)
	sessionID := observability.SessionIDFromContext(ctx)
	if sessionID == "" {
		return logger
	}
	switch l := logger.(type) {
	case nopLogger:
		return l
	case *observabilityPrintfLogger:
		return &observabilityPrintfLogger{logger: l.logger.WithContext(ctx)}
	default:
		return &prefixLogger{next: l, prefix: "[" + strings.ReplaceAll(sessionID, "%", "%%") + "] "}
	}
}

type prefixLogger struct {
	next   Logger
	prefix string
}

func (l *prefixLogger) Debug(format string, args ...any) { l.next.Debug(l.prefix+format, args...) }
func (l *prefixLogger) Info(format string, args ...any)  { l.next.Info(l.prefix+format, args...) }
func (l *prefixLogger) Warn(format string, args ...any)  { l.next.Warn(l.prefix+format, args...) }
func (l *prefixLogger) Error(format string, args ...any) { l.next.Error(l.prefix+format, args...) }
