package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a reasoning-service failure for the session log. The
// runtime never retries; the kind only tells a reader why the session ended.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindServer    Kind = "server"
	KindClient    Kind = "client"
	KindCanceled  Kind = "canceled"
	KindUnknown   Kind = "unknown"
)

// TransientError represents a failure that a caller with a retry policy could
// retry (rate limits, 5xx, network).
type TransientError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	RetryAfter string // raw Retry-After header, if any
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents a failure that will not go away by repeating the
// request (bad credentials, malformed request).
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewHTTPError maps a non-2xx response from a remote service to a typed error.
func NewHTTPError(statusCode int, body []byte, retryAfter string) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512] + "..."
	}
	base := fmt.Errorf("status %d: %s", statusCode, detail)
	msg := fmt.Sprintf("API error (status %d): %s", statusCode, detail)
	if isTransientHTTPStatus(statusCode) {
		return &TransientError{Err: base, StatusCode: statusCode, RetryAfter: retryAfter, Message: msg}
	}
	return &PermanentError{Err: base, StatusCode: statusCode, Message: msg}
}

// IsTransient checks if an error is retry-able.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	return isNetworkError(err) || isSyscallError(err)
}

// StatusCode returns the HTTP status carried by a typed error, or 0.
func StatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return permanentErr.StatusCode
	}
	return 0
}

// Classify assigns a Kind to a reasoning-service failure.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if status := StatusCode(err); status > 0 {
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return KindAuth
		case status == http.StatusTooManyRequests:
			return KindRateLimit
		case status >= 500:
			return KindServer
		default:
			return KindClient
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if isNetworkError(err) || isSyscallError(err) {
		return KindNetwork
	}
	return KindUnknown
}

// FormatForLLM converts technical errors to short actionable messages for the
// operator console.
func FormatForLLM(err error) string {
	if err == nil {
		return ""
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.Message != "" {
		return transientErr.Message
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.Message != "" {
		return permanentErr.Message
	}

	switch Classify(err) {
	case KindCanceled:
		return "Request canceled before the service responded."
	case KindTimeout:
		return "Request timed out waiting for the reasoning service."
	case KindNetwork:
		return "Network connectivity issue reaching the reasoning service."
	}
	return err.Error()
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // provider overloaded
		return true
	}
	return false
}
