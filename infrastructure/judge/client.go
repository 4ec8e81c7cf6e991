package judge

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/verdictlabs/verdict/infrastructure/llm"
	"github.com/verdictlabs/verdict/internal/domain"
	"github.com/verdictlabs/verdict/internal/ports"
)

// AdmissionGuard decides whether a judge call may proceed before any
// provider traffic is generated. The budget guard in
// infrastructure/middleware implements it against the cost ledger.
type AdmissionGuard interface {
	// Admit returns nil to allow the call or an error explaining the
	// refusal (typically *domain.BudgetExceededError).
	Admit(ctx context.Context) error
}

// Client evaluates prompts against a judge LLM. It owns the call policy
// around a provider adapter: content-hash caching, bounded concurrency,
// per-attempt timeouts, retry with exponential backoff, response parsing,
// and cost accounting. Safe for concurrent use.
type Client struct {
	cfg     Config
	adapter llm.Adapter
	parser  *Parser
	costs   *CostTracker
	cache   ports.CacheStore
	sem     *semaphore.Weighted
	log     logrus.FieldLogger
	metrics ports.MetricsCollector
	guard   AdmissionGuard

	middleware []llm.Middleware
	pricing    *PricingTable

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger replaces the default logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCache replaces the default in-memory cache, e.g. with a Redis-backed
// store shared across processes.
func WithCache(cache ports.CacheStore) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithMetrics attaches a metrics collector. Nil (the default) disables
// metrics.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithPricing replaces the built-in pricing table.
func WithPricing(table *PricingTable) Option {
	return func(c *Client) {
		if table != nil {
			c.pricing = table
		}
	}
}

// WithCostTracker shares an existing ledger, so several clients (or a
// client and a budget guard) account into the same totals.
func WithCostTracker(tracker *CostTracker) Option {
	return func(c *Client) {
		if tracker != nil {
			c.costs = tracker
		}
	}
}

// WithAdapter injects a pre-built adapter, bypassing provider
// construction and its credential requirements. Intended for tests and
// for callers composing their own middleware stacks.
func WithAdapter(adapter llm.Adapter) Option {
	return func(c *Client) {
		if adapter != nil {
			c.adapter = adapter
		}
	}
}

// WithMiddleware appends adapter middleware (rate limiting, circuit
// breaking, tracing) applied when the client constructs its adapter.
func WithMiddleware(mw ...llm.Middleware) Option {
	return func(c *Client) { c.middleware = append(c.middleware, mw...) }
}

// WithAdmissionGuard installs a pre-call guard such as a budget limit.
func WithAdmissionGuard(guard AdmissionGuard) Option {
	return func(c *Client) { c.guard = guard }
}

// NewClient validates cfg and builds a judge client. Construction is
// fail-fast and performs no network I/O; credential problems surface on
// the first Judge call.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:   cfg,
		cache: NewMemoryCache(),
		log:   logrus.StandardLogger().WithField("component", "judge"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.parser == nil {
		c.parser = NewParser(WithDefaultScale(cfg.DefaultScale))
	}
	if c.costs == nil {
		if c.pricing == nil {
			c.pricing = DefaultPricingTable()
		}
		c.costs = NewCostTracker(c.pricing)
	}
	c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))

	if c.adapter == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		adapter, err := llm.NewAdapter(cfg.Provider, llm.AdapterConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, c.middleware...)
		if err != nil {
			return nil, err
		}
		c.adapter = adapter
	}

	return c, nil
}

// judgeCall holds per-call settings.
type judgeCall struct {
	system   string
	useCache *bool
}

// JudgeOption customizes a single Judge call.
type JudgeOption func(*judgeCall)

// WithSystemPrompt sets the system-role instruction for this call. It
// participates in the cache key, so different rubrics never share entries.
func WithSystemPrompt(system string) JudgeOption {
	return func(jc *judgeCall) { jc.system = system }
}

// WithCacheOverride forces caching on or off for this call regardless of
// the client configuration.
func WithCacheOverride(enabled bool) JudgeOption {
	return func(jc *judgeCall) { jc.useCache = &enabled }
}

// Judge evaluates prompt with the configured judge model and returns a
// normalized Judgment. A cache hit returns immediately with no provider
// traffic and no ledger entry. Transient provider failures are retried
// with exponential backoff up to the configured budget; terminal failures
// return at once. The returned error, when non-nil, is an
// *domain.EvaluationError except for empty prompts, admission refusals,
// and context cancellation.
func (c *Client) Judge(ctx context.Context, prompt string, opts ...JudgeOption) (*domain.Judgment, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}

	var call judgeCall
	for _, opt := range opts {
		opt(&call)
	}
	useCache := c.cfg.CacheJudgments
	if call.useCache != nil {
		useCache = *call.useCache
	}

	model := c.model()
	key := cacheKey(string(c.adapter.Provider()), model, call.system, prompt,
		c.cfg.Temperature, c.cfg.MaxTokens)

	if useCache {
		if judgment, ok := c.cacheLookup(ctx, key); ok {
			return judgment, nil
		}
	}

	if c.guard != nil {
		if err := c.guard.Admit(ctx); err != nil {
			c.count("judge_rejected_total", map[string]string{"reason": "budget"})
			return nil, err
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	start := time.Now()
	resp, attempts, err := c.complete(ctx, prompt, call.system)
	if err != nil {
		c.count("judgments_total", map[string]string{"status": "error"})
		return nil, err
	}

	judgment := c.parser.Parse(resp.Text)
	cost := c.costs.Record(model, resp.Usage)
	judgment.Metadata["provider"] = string(c.adapter.Provider())
	judgment.Metadata["model"] = model
	judgment.Metadata["attempts"] = attempts
	judgment.Metadata["cost_usd"] = cost.CostUSD

	c.observe(start, judgment, cost)
	c.log.WithFields(logrus.Fields{
		"model":    model,
		"score":    judgment.Score,
		"attempts": attempts,
		"tokens":   cost.Usage.TotalTokens,
		"cost_usd": cost.CostUSD,
	}).Debug("judgment completed")

	if useCache {
		if err := c.cache.Set(ctx, key, judgment, c.cfg.CacheTTL); err != nil {
			c.log.WithError(err).WithField("key", redactKey(key)).Warn("cache write failed")
		}
	}

	return &judgment, nil
}

// complete runs the attempt loop: per-attempt timeout, retry on transient
// errors with doubling backoff, immediate return on terminal errors.
func (c *Client) complete(ctx context.Context, prompt, system string) (*llm.Response, int, error) {
	req := llm.Request{
		Prompt:      prompt,
		System:      system,
		Model:       c.cfg.Model,
		Temperature: &c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	maxAttempts := c.cfg.MaxRetries + 1
	delay := c.cfg.RetryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.adapter.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		// Caller cancellation is terminal regardless of what the
		// adapter reports; only the per-attempt deadline is transient.
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}

		if !c.adapter.IsRetryable(err) {
			return nil, attempt, domain.NewEvaluationError(
				domain.ErrProviderRejected, string(c.adapter.Provider()), c.model(), attempt, err)
		}

		if attempt < maxAttempts {
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": delay,
			}).Warn("transient provider error, retrying")
			c.count("judge_retries_total", nil)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, attempt, err
			}
			delay *= 2
		}
	}

	return nil, maxAttempts, domain.NewEvaluationError(
		domain.ErrExhaustedRetries, string(c.adapter.Provider()), c.model(), maxAttempts, lastErr)
}

// cacheLookup resolves key against the cache, maintaining hit/miss
// counters. Lookup errors degrade to a miss rather than failing the call.
func (c *Client) cacheLookup(ctx context.Context, key string) (*domain.Judgment, bool) {
	value, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", redactKey(key)).Warn("cache read failed")
	}
	if ok {
		if judgment, valid := value.(domain.Judgment); valid {
			c.cacheHits.Add(1)
			c.count("judge_cache_hits_total", nil)
			return &judgment, true
		}
	}
	c.cacheMisses.Add(1)
	c.count("judge_cache_misses_total", nil)
	return nil, false
}

// model returns the effective model identifier for ledger and cache keys.
func (c *Client) model() string {
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return c.adapter.Model()
}

// CacheStats returns the live entry count and hit/miss counters.
func (c *Client) CacheStats(ctx context.Context) CacheStats {
	size, err := c.cache.Len(ctx)
	if err != nil {
		c.log.WithError(err).Warn("cache size unavailable")
	}

	hits := c.cacheHits.Load()
	misses := c.cacheMisses.Load()
	stats := CacheStats{Size: size, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ClearCache drops all cached judgments. Hit/miss counters are preserved.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

// Costs exposes the underlying ledger, e.g. for wiring a budget guard.
func (c *Client) Costs() *CostTracker { return c.costs }

// CostSummary returns a snapshot of accumulated usage and spend.
func (c *Client) CostSummary() CostSummary { return c.costs.Summary() }

// TotalCost returns the accumulated spend in USD.
func (c *Client) TotalCost() float64 { return c.costs.TotalCost() }

// TotalTokens returns the accumulated token count.
func (c *Client) TotalTokens() int64 { return c.costs.TotalTokens() }

// JudgmentCount returns the number of judgments recorded in the ledger.
func (c *Client) JudgmentCount() int64 { return c.costs.JudgmentCount() }

// ResetCosts zeroes the ledger, typically at a session boundary.
func (c *Client) ResetCosts() { c.costs.Reset() }

// observe emits per-judgment metrics when a collector is attached.
func (c *Client) observe(start time.Time, judgment domain.Judgment, cost domain.JudgmentCost) {
	if c.metrics == nil {
		return
	}
	labels := map[string]string{"model": cost.Model}
	c.metrics.RecordLatency("judge", time.Since(start), labels)
	c.metrics.RecordCounter("judgments_total", 1, map[string]string{"status": "ok", "model": cost.Model})
	c.metrics.RecordHistogram("judge_score", judgment.Score, labels)
	c.metrics.RecordHistogram("judge_tokens", float64(cost.Usage.TotalTokens), labels)
	c.metrics.RecordCounter("judge_cost_usd_total", cost.CostUSD, labels)
}

// count increments a counter when a collector is attached.
func (c *Client) count(metric string, labels map[string]string) {
	if c.metrics != nil {
		c.metrics.RecordCounter(metric, 1, labels)
	}
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
