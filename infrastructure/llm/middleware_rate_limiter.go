package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedAdapter paces requests with a token bucket so the judge
// client stays under provider rate limits even when the concurrency bound
// allows bursts.
type rateLimitedAdapter struct {
	next    Adapter
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware enforcing a sustained requests
// per second limit with the given burst allowance.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next Adapter) Adapter {
		return &rateLimitedAdapter{next: next, limiter: limiter}
	}
}

// Complete blocks until a rate token is available, then forwards the request.
func (r *rateLimitedAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Complete(ctx, req)
}

// IsRetryable delegates to the wrapped adapter.
func (r *rateLimitedAdapter) IsRetryable(err error) bool { return r.next.IsRetryable(err) }

// Provider delegates to the wrapped adapter.
func (r *rateLimitedAdapter) Provider() Provider { return r.next.Provider() }

// Model delegates to the wrapped adapter.
func (r *rateLimitedAdapter) Model() string { return r.next.Model() }
