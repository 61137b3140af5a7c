// Package testutil provides test utilities for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/treespora/planner/llm"
)

// ProviderName is the provider name MockProvider answers to.
const ProviderName = "mock"

// MockProvider is a thread-safe scripted llm.Provider.
//
// Usage:
//
//	mock := &testutil.MockProvider{Contents: []string{`{"overview": "..."}`}}
//	client := llm.NewClient(testutil.Registry(0), llm.WithProvider(testutil.ProviderName, mock))
//
// Err takes precedence over Contents. Once Contents is exhausted the last entry repeats.
type MockProvider struct {
	mu        sync.Mutex
	Contents  []string
	Err       error
	calls     []llm.Call
	callCount int
	index     int

	// Block, when set, makes Complete wait for ctx to end and return its error.
	Block bool
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string {
	return ProviderName
}

// Complete implements llm.Provider.
func (m *MockProvider) Complete(ctx context.Context, call llm.Call) (*llm.Response, error) {
	m.mu.Lock()
	m.callCount++
	m.calls = append(m.calls, call)
	block := m.Block
	err := m.Err
	content := ""
	if len(m.Contents) > 0 {
		i := m.index
		if i >= len(m.Contents) {
			i = len(m.Contents) - 1
		} else {
			m.index++
		}
		content = m.Contents[i]
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &llm.Response{
		Content:      content,
		Model:        call.Model,
		FinishReason: "stop",
		Usage:        llm.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

// SetContents replaces the scripted responses and rewinds.
func (m *MockProvider) SetContents(contents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Contents = contents
	m.index = 0
}

// SetErr sets the error returned by subsequent calls.
func (m *MockProvider) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Calls returns a copy of every call received.
func (m *MockProvider) Calls() []llm.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent call, or a zero Call.
func (m *MockProvider) LastCall() llm.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return llm.Call{}
	}
	return m.calls[len(m.calls)-1]
}

// Reset resets call tracking and rewinds the scripted responses.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.index = 0
	m.calls = nil
}
