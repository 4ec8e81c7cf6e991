package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verdictlabs/verdict/internal/domain"
)

// MockAdapter is a configurable Adapter for tests. It supports scripted
// failures, response delays, and call tracking, so retry, concurrency,
// and caching behavior can be exercised without network access.
type MockAdapter struct {
	mu sync.Mutex

	// Response configuration.
	Text          string
	Usage         domain.TokenUsage
	Err           error
	Retryable     bool
	ModelName     string
	ProviderName  Provider
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	// Tracking.
	CallCount   int
	LastRequest Request
	Requests    []Request
	Timestamps  []time.Time

	// inFlight tracks concurrently executing calls for concurrency tests.
	inFlight    int
	maxInFlight int
}

// NewMockAdapter creates a mock with default successful behavior.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Text:         `{"score": 8, "reasoning": "solid answer", "confidence": 0.9}`,
		Usage:        domain.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		ModelName:    "mock-model",
		ProviderName: Provider("mock"),
		Retryable:    true,
	}
}

// Complete implements Adapter with the configured behavior.
func (m *MockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	m.Requests = append(m.Requests, req)
	m.Timestamps = append(m.Timestamps, time.Now())
	call := m.CallCount
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.ResponseDelay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, NewProviderError(string(m.ProviderName), ErrorTypeServerError, 500, "simulated failure", nil)
	}

	if m.Err != nil {
		return nil, m.Err
	}

	return &Response{Text: m.Text, Usage: m.Usage}, nil
}

// IsRetryable uses the shared classification for classified errors and
// the configured Retryable flag for plain ones.
func (m *MockAdapter) IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Retryable && err != nil && !isContextError(err)
}

// Provider returns the configured provider name.
func (m *MockAdapter) Provider() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProviderName
}

// Model returns the configured model name.
func (m *MockAdapter) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ModelName
}

// GetCallCount returns the number of Complete invocations.
func (m *MockAdapter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MaxInFlight returns the peak number of concurrently executing calls.
func (m *MockAdapter) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Reset clears tracking state while preserving configuration.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastRequest = Request{}
	m.Requests = nil
	m.Timestamps = nil
	m.maxInFlight = 0
}
