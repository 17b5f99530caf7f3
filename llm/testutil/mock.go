// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"
)

// MockModel is a thread-safe scripted llm.Model.
//
// Usage:
//
//	// Answers returned in sequence; the last one repeats
//	mock := &MockModel{Responses: []string{"```\nlet x = 1\n```", "the specification syntax is valid: true"}}
//
//	// Error on every call
//	mock := &MockModel{Err: errors.New("connection failed")}
//
//	// Error on the third call only
//	mock := &MockModel{Responses: answers, ErrOnCall: map[int]error{3: err}}
//
//	// Answer chosen from the prompt
//	mock := &MockModel{Respond: func(prompt string) (string, error) { ... }}
type MockModel struct {
	mu sync.Mutex

	// Responses are returned in order. Once exhausted the last one repeats.
	Responses []string

	// Err is returned from every call and takes precedence over everything else.
	Err error

	// ErrOnCall maps a 1-based call number to an error returned for that call.
	ErrOnCall map[int]error

	// Respond, when set, computes the answer from the prompt.
	Respond func(prompt string) (string, error)

	capturedContext context.Context
	prompts         []string
	callCount       int
}

// Call implements llm.Model.
func (m *MockModel) Call(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.prompts = append(m.prompts, prompt)
	m.callCount++

	if m.Err != nil {
		return "", m.Err
	}
	if err, ok := m.ErrOnCall[m.callCount]; ok {
		return "", err
	}
	if m.Respond != nil {
		return m.Respond(prompt)
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	i := min(m.callCount-1, len(m.Responses)-1)
	return m.Responses[i], nil
}

// GetCapturedContext returns the last context passed to Call().
func (m *MockModel) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Call() was invoked.
func (m *MockModel) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt received, in order.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset clears recorded calls. Scripted responses are kept.
func (m *MockModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.capturedContext = nil
}
