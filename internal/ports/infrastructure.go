// Package ports defines the interfaces the judge client depends on for
// caching, metrics, and ledger reads. Implementations live under
// infrastructure/; the interfaces keep those concerns swappable in tests.
package ports

import (
	"context"
	"time"
)

// CacheStore defines the interface for caching judgments.
// The default implementation is in-memory, but anything keyed by string
// with TTL semantics (Redis, Memcached) can back it.
type CacheStore interface {
	// Get retrieves a cached value by key.
	// Returns the value and true if found and not expired.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value under key with an expiration.
	// A zero duration means the entry does not expire.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Delete removes a single key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)
}

// MetricsCollector defines the interface for recording operational metrics.
// Implementations integrate with Prometheus or other monitoring backends;
// a nil collector disables metrics entirely.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric, for events such as
	// judgments completed, cache hits, or retry attempts.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a distribution, for values such
	// as scores or token counts.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// UsageReader exposes the read side of the cost ledger. The budget guard
// consumes this interface so it can admit or reject calls without
// depending on the concrete tracker.
type UsageReader interface {
	// TotalCost returns the accumulated cost in USD across all judgments.
	TotalCost() float64

	// TotalTokens returns the accumulated token count across all judgments.
	TotalTokens() int64

	// JudgmentCount returns the number of judgments recorded.
	JudgmentCount() int64
}
