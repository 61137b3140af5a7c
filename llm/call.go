package llm

import (
	"context"
	"time"
)

// CallRecord describes a single LLM API call. Prompt and response bodies are not kept.
type CallRecord struct {
	RequestID    string
	Capability   string
	Endpoint     string
	Provider     string
	Model        string
	StartedAt    time.Time
	Duration     time.Duration
	Usage        TokenUsage
	FinishReason string

	// ErrorKind and Error are empty on success.
	ErrorKind string
	Error     string
}

// CallRecorder persists call records.
type CallRecorder interface {
	RecordCall(ctx context.Context, record *CallRecord) error
}
