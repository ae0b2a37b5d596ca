package llm

import (
	"context"
	"sync"
)

// MockGenerator is a scripted Generator for testing.
type MockGenerator struct {
	// GenerateFunc overrides all scripted behavior when set.
	GenerateFunc func(ctx context.Context, prompt string, variant ModelVariant) (string, error)

	// Responses are returned in order. When the script runs out,
	// the last response repeats.
	Responses []string

	// Err, when set, is returned by every call.
	Err error

	// Calls records every invocation for assertions.
	Calls []GenerateCall

	next int
	mu   sync.Mutex
}

// GenerateCall captures the arguments of one Generate invocation.
type GenerateCall struct {
	Prompt  string
	Variant ModelVariant
}

// NewMockGenerator creates a mock that replays the given responses.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{Responses: responses}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, variant ModelVariant) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, GenerateCall{Prompt: prompt, Variant: variant})

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, variant)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", &GenerationError{Attempts: 1, Err: context.Canceled}
	}

	resp := m.Responses[m.next]
	if m.next < len(m.Responses)-1 {
		m.next++
	}
	return resp, nil
}

// CallCount returns the number of Generate invocations so far.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent invocation, or a zero value if none.
func (m *MockGenerator) LastCall() GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return GenerateCall{}
	}
	return m.Calls[len(m.Calls)-1]
}
