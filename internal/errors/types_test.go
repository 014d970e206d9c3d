package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHTTPErrorTyping(t *testing.T) {
	rateLimited := NewHTTPError(429, []byte(`{"error":"slow down"}`), "3")
	assert.True(t, IsTransient(rateLimited))
	assert.True(t, errors.As(rateLimited, new(*TransientError)))
	assert.Equal(t, 429, StatusCode(rateLimited))

	badKey := NewHTTPError(401, []byte("invalid x-api-key"), "")
	assert.False(t, IsTransient(badKey))
	assert.True(t, errors.As(badKey, new(*PermanentError)))
	assert.Contains(t, badKey.Error(), "status 401")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"auth", NewHTTPError(401, nil, ""), KindAuth},
		{"forbidden", NewHTTPError(403, nil, ""), KindAuth},
		{"rate limit", NewHTTPError(429, nil, ""), KindRateLimit},
		{"overloaded", NewHTTPError(529, nil, ""), KindServer},
		{"bad request", NewHTTPError(400, nil, ""), KindClient},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), KindCanceled},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}, KindNetwork},
		{"other", fmt.Errorf("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFormatForLLMPrefersTypedMessage(t *testing.T) {
	err := fmt.Errorf("complete: %w", NewHTTPError(500, []byte("upstream exploded"), ""))
	assert.Equal(t, "API error (status 500): upstream exploded", FormatForLLM(err))
	assert.Equal(t, "", FormatForLLM(nil))
}
