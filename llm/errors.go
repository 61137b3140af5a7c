package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed LLM call.
type ErrorKind string

// Transport kinds are transient: the caller may re-invoke the whole operation.
// Response kinds are fatal for the call: the caller must fall back, not retry blindly.
const (
	KindTimeout        ErrorKind = "timeout"
	KindUpstreamHTTP   ErrorKind = "upstream_http"
	KindRequestFailed  ErrorKind = "request_failed"
	KindNotJSON        ErrorKind = "not_json"
	KindInvalidPayload ErrorKind = "invalid_payload"
)

// Transient reports whether the kind is a transport failure.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindTimeout, KindUpstreamHTTP, KindRequestFailed:
		return true
	}
	return false
}

// Error is the single error type surfaced by the client and gateway.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // set for KindUpstreamHTTP
	Capability string // capability of the failing call, when known
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "LLM " + string(e.Kind)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError wraps an error as a timed-out call.
func NewTimeoutError(err error) error {
	return &Error{Kind: KindTimeout, Message: "LLM request timed out", Err: err}
}

// NewHTTPError wraps an upstream non-2xx response.
func NewHTTPError(statusCode int, err error) error {
	return &Error{Kind: KindUpstreamHTTP, StatusCode: statusCode, Message: "LLM responded with an HTTP error", Err: err}
}

// NewRequestError wraps any other transport failure.
func NewRequestError(err error) error {
	return &Error{Kind: KindRequestFailed, Message: "LLM request failed", Err: err}
}

// NewNotJSONError reports a response without a parseable JSON object.
func NewNotJSONError(err error) error {
	return &Error{Kind: KindNotJSON, Message: "LLM response did not contain valid JSON", Err: err}
}

// NewInvalidPayloadError reports a response that parsed but failed schema validation.
func NewInvalidPayloadError(err error) error {
	return &Error{Kind: KindInvalidPayload, Message: "LLM response payload is invalid", Err: err}
}

// KindOf returns the kind of an LLM error, or empty if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransient returns true if the error is a transport failure.
func IsTransient(err error) bool {
	return KindOf(err).Transient()
}

// IsFatal returns true if the error is an unusable response.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k != "" && !k.Transient()
}

// classify converts a provider error into an *Error.
// Errors that already carry a kind keep it.
func classify(err error, capability string) error {
	var e *Error
	if errors.As(err, &e) {
		if e.Capability == "" {
			e.Capability = capability
		}
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e = &Error{Kind: KindTimeout, Message: "LLM request timed out", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		e = &Error{Kind: KindTimeout, Message: "LLM request timed out", Err: err}
	default:
		e = &Error{Kind: KindRequestFailed, Message: "LLM request failed", Err: err}
	}
	e.Capability = capability
	return e
}
