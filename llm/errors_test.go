package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, KindTimeout},
		{"canceled", context.Canceled, KindRequestFailed},
		{"plain", errors.New("connection refused"), KindRequestFailed},
		{"already classified", NewHTTPError(503, errors.New("busy")), KindUpstreamHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "summary")
			assert.Equal(t, tt.want, KindOf(err))

			var e *Error
			if assert.ErrorAs(t, err, &e) {
				assert.Equal(t, "summary", e.Capability)
			}
		})
	}
}

func TestErrorClassificationHelpers(t *testing.T) {
	httpErr := NewHTTPError(429, errors.New("rate limited"))
	assert.True(t, IsTransient(httpErr))
	assert.False(t, IsFatal(httpErr))
	assert.Contains(t, httpErr.Error(), "status=429")

	assert.True(t, IsTransient(NewTimeoutError(context.DeadlineExceeded)))
	assert.True(t, IsTransient(NewRequestError(errors.New("dns"))))

	assert.True(t, IsFatal(NewNotJSONError(errors.New("x"))))
	assert.True(t, IsFatal(fmt.Errorf("gateway: %w", NewInvalidPayloadError(errors.New("days: required")))))

	plain := errors.New("boom")
	assert.False(t, IsTransient(plain))
	assert.False(t, IsFatal(plain))
	assert.Equal(t, ErrorKind(""), KindOf(plain))
}

func TestErrorUnwrap(t *testing.T) {
	err := NewTimeoutError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
