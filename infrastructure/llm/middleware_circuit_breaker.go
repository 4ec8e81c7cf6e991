package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request
// without contacting the provider. It is classified as non-retryable so
// retry loops fail fast while the circuit cools down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

// Circuit breaker states.
const (
	// CircuitClosed passes all requests through; the provider is healthy.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects all requests until the cooldown elapses.
	CircuitOpen

	// CircuitHalfOpen lets a probe request through to test recovery.
	CircuitHalfOpen
)

// CircuitBreaker trips open after a run of consecutive failures and
// recovers through a half-open probe after the cooldown. Unlike a
// mutex-around-the-call design, state checks and updates are split so the
// lock is never held across provider I/O.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after
// maxFailures consecutive errors and stays open for cooldownDuration.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldownDuration,
	}
}

// Allow reports whether a request may proceed, transitioning an open
// circuit to half-open once the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.lastFailure) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
	}
	return nil
}

// Record updates circuit state from the outcome of an allowed request.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailure = time.Now()
		if cb.state == CircuitHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = CircuitOpen
		}
		return
	}

	cb.failureCount = 0
	cb.state = CircuitClosed
}

// State returns the current circuit state for monitoring.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakedAdapter fails fast once the provider shows a run of
// failures, protecting both sides from pointless traffic.
type circuitBreakedAdapter struct {
	next Adapter
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware creates middleware that opens after
// maxFailures consecutive errors and probes recovery after cooldown.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next Adapter) Adapter {
		return &circuitBreakedAdapter{next: next, cb: cb}
	}
}

// Complete executes the request through the circuit breaker. An open
// circuit returns ErrCircuitOpen without touching the provider.
func (c *circuitBreakedAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.cb.Allow(); err != nil {
		return nil, err
	}

	resp, err := c.next.Complete(ctx, req)
	c.cb.Record(err)
	return resp, err
}

// IsRetryable treats circuit rejections as terminal and delegates
// everything else to the wrapped adapter.
func (c *circuitBreakedAdapter) IsRetryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return c.next.IsRetryable(err)
}

// Provider delegates to the wrapped adapter.
func (c *circuitBreakedAdapter) Provider() Provider { return c.next.Provider() }

// Model delegates to the wrapped adapter.
func (c *circuitBreakedAdapter) Model() string { return c.next.Model() }
