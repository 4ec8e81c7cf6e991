package judge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/verdictlabs/verdict/infrastructure/llm"
	"github.com/verdictlabs/verdict/internal/domain"
)

// testConfig returns a config suitable for mock-backed tests: caching on,
// millisecond backoff so retry tests do not sleep for real seconds.
func testConfig() Config {
	return Config{
		Provider:       "mock",
		Temperature:    0,
		MaxRetries:     2,
		CacheJudgments: true,
		RetryBaseDelay: time.Millisecond,
	}
}

func newTestClient(t *testing.T, cfg Config, mock *llm.MockAdapter, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithAdapter(mock)}, opts...)
	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing api key", Config{Provider: llm.ProviderOpenAI}},
		{"missing provider", Config{APIKey: "k", Provider: ""}},
		{"negative temperature", func() Config {
			cfg := OpenAIConfig("k", "")
			cfg.Temperature = -1
			return cfg
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	cfg := baseConfig("test-key")
	cfg.Provider = "unsupported"

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewClientNoNetworkIO(t *testing.T) {
	// Construction with an unreachable endpoint must still succeed;
	// credential and connectivity problems surface on the first call.
	cfg := OpenAIConfig("bogus-key", "gpt-4o-mini")
	cfg.BaseURL = "http://127.0.0.1:1"

	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestJudgeSuccess(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)

	judgment, err := client.Judge(context.Background(), "Evaluate: water is wet.")
	require.NoError(t, err)
	require.NotNil(t, judgment)

	assert.InDelta(t, 0.8, judgment.Score, 1e-9)
	assert.InDelta(t, 0.9, judgment.Confidence, 1e-9)
	assert.Equal(t, "solid answer", judgment.Reasoning)
	assert.False(t, judgment.Unparsed())
	assert.Equal(t, "mock-model", judgment.Metadata["model"])
	assert.Equal(t, 1, judgment.Metadata["attempts"])

	assert.Equal(t, 1, mock.GetCallCount())
	assert.Equal(t, int64(30), client.TotalTokens())
	assert.Equal(t, int64(1), client.JudgmentCount())
}

func TestJudgeEmptyPrompt(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := client.Judge(context.Background(), prompt)
		assert.ErrorIs(t, err, domain.ErrEmptyPrompt)
	}
	assert.Zero(t, mock.GetCallCount(), "empty prompts must not reach the provider")
}

func TestJudgeSystemPromptForwarded(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)

	_, err := client.Judge(context.Background(), "prompt", WithSystemPrompt("be strict"))
	require.NoError(t, err)

	assert.Equal(t, "be strict", mock.LastRequest.System)
	assert.Equal(t, "prompt", mock.LastRequest.Prompt)
}

func TestJudgeCacheHit(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)
	ctx := context.Background()

	first, err := client.Judge(ctx, "same prompt")
	require.NoError(t, err)

	second, err := client.Judge(ctx, "same prompt")
	require.NoError(t, err)

	// One provider call, one ledger record; the cached judgment is
	// returned as-is.
	assert.Equal(t, 1, mock.GetCallCount())
	assert.Equal(t, int64(1), client.JudgmentCount())
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Reasoning, second.Reasoning)

	stats := client.CacheStats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Equal(t, 1, stats.Size)
}

func TestJudgeCacheKeyedByRequest(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)
	ctx := context.Background()

	_, err := client.Judge(ctx, "prompt one")
	require.NoError(t, err)
	_, err = client.Judge(ctx, "prompt two")
	require.NoError(t, err)
	_, err = client.Judge(ctx, "prompt one", WithSystemPrompt("different rubric"))
	require.NoError(t, err)

	assert.Equal(t, 3, mock.GetCallCount(), "distinct requests must not share cache entries")
}

func TestJudgeCacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.CacheJudgments = false
	mock := llm.NewMockAdapter()
	client := newTestClient(t, cfg, mock)
	ctx := context.Background()

	_, err := client.Judge(ctx, "prompt")
	require.NoError(t, err)
	_, err = client.Judge(ctx, "prompt")
	require.NoError(t, err)

	assert.Equal(t, 2, mock.GetCallCount())
}

func TestJudgeCacheOverride(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)
	ctx := context.Background()

	_, err := client.Judge(ctx, "prompt")
	require.NoError(t, err)

	// Forcing the cache off re-queries the provider despite a live entry.
	_, err = client.Judge(ctx, "prompt", WithCacheOverride(false))
	require.NoError(t, err)

	assert.Equal(t, 2, mock.GetCallCount())
}

func TestJudgeClearCache(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock)
	ctx := context.Background()

	_, err := client.Judge(ctx, "prompt")
	require.NoError(t, err)

	require.NoError(t, client.ClearCache(ctx))

	_, err = client.Judge(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestJudgeRetriesTransientFailures(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.FailUntilAttempt = 2 // first two calls fail with a 500

	cfg := testConfig()
	cfg.MaxRetries = 2
	client := newTestClient(t, cfg, mock)

	judgment, err := client.Judge(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, 3, mock.GetCallCount())
	assert.Equal(t, 3, judgment.Metadata["attempts"])
	// Failed attempts must not pollute the ledger.
	assert.Equal(t, int64(1), client.JudgmentCount())
}

func TestJudgeExhaustedRetries(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.Err = llm.NewProviderError("mock", llm.ErrorTypeRateLimit, 429, "slow down", nil)

	cfg := testConfig()
	cfg.MaxRetries = 1
	client := newTestClient(t, cfg, mock)

	_, err := client.Judge(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExhaustedRetries)

	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 2, evalErr.Attempts)
	assert.Equal(t, "mock-model", evalErr.Model)

	assert.Equal(t, 2, mock.GetCallCount())
	assert.Zero(t, client.JudgmentCount())
}

func TestJudgeNonRetryableFailsFast(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.Err = llm.NewProviderError("mock", llm.ErrorTypeAuthentication, 401, "bad key", nil)

	client := newTestClient(t, testConfig(), mock)

	_, err := client.Judge(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderRejected)

	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 1, evalErr.Attempts)

	assert.Equal(t, 1, mock.GetCallCount(), "terminal errors must not be retried")
}

func TestJudgeContextCancellation(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.ResponseDelay = time.Second

	client := newTestClient(t, testConfig(), mock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Judge(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "cancellation must return promptly")
	assert.Equal(t, 1, mock.GetCallCount(), "cancellation must not trigger retries")
}

func TestJudgeConcurrencyBound(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.ResponseDelay = 30 * time.Millisecond

	cfg := testConfig()
	cfg.MaxConcurrency = 3
	cfg.CacheJudgments = false
	client := newTestClient(t, cfg, mock)

	var g errgroup.Group
	for i := 0; i < 12; i++ {
		i := i
		g.Go(func() error {
			_, err := client.Judge(context.Background(), fmt.Sprintf("prompt %d", i))
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 12, mock.GetCallCount())
	assert.LessOrEqual(t, mock.MaxInFlight(), 3,
		"in-flight provider calls must never exceed MaxConcurrency")
}

func TestJudgeConcurrentCostAccounting(t *testing.T) {
	mock := llm.NewMockAdapter()

	cfg := testConfig()
	cfg.CacheJudgments = false
	client := newTestClient(t, cfg, mock)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			_, err := client.Judge(context.Background(), fmt.Sprintf("prompt %d", i))
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(20), client.JudgmentCount())
	assert.Equal(t, int64(20*30), client.TotalTokens())
}

// stubGuard denies admission with a fixed error.
type stubGuard struct {
	err   error
	calls int
}

func (s *stubGuard) Admit(context.Context) error {
	s.calls++
	return s.err
}

func TestJudgeAdmissionGuardBlocks(t *testing.T) {
	guard := &stubGuard{err: domain.NewBudgetExceededError("cost", 1.0, 1.2)}
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock, WithAdmissionGuard(guard))

	_, err := client.Judge(context.Background(), "prompt")
	require.Error(t, err)

	var budgetErr *domain.BudgetExceededError
	assert.ErrorAs(t, err, &budgetErr)
	assert.Zero(t, mock.GetCallCount(), "rejected calls must not reach the provider")
}

func TestJudgeCacheHitBypassesGuard(t *testing.T) {
	guard := &stubGuard{}
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock, WithAdmissionGuard(guard))
	ctx := context.Background()

	_, err := client.Judge(ctx, "prompt")
	require.NoError(t, err)

	// Exhaust the budget, then repeat the identical request: the cache
	// answers without an admission check or provider traffic.
	guard.err = domain.NewBudgetExceededError("judgments", 1, 1)

	judgment, err := client.Judge(ctx, "prompt")
	require.NoError(t, err)
	assert.NotNil(t, judgment)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestJudgeUnparsedResponseStillRecordsCost(t *testing.T) {
	mock := llm.NewMockAdapter()
	mock.Text = "I cannot evaluate this."

	client := newTestClient(t, testConfig(), mock)

	judgment, err := client.Judge(context.Background(), "prompt")
	require.NoError(t, err, "unparseable text is not an error")
	assert.True(t, judgment.Unparsed())
	assert.Zero(t, judgment.Score)
	assert.Equal(t, int64(1), client.JudgmentCount())
	assert.Equal(t, int64(30), client.TotalTokens())
}

func TestJudgeSharedCostTracker(t *testing.T) {
	tracker := NewCostTracker(DefaultPricingTable())

	mockA := llm.NewMockAdapter()
	mockB := llm.NewMockAdapter()
	clientA := newTestClient(t, testConfig(), mockA, WithCostTracker(tracker))
	clientB := newTestClient(t, testConfig(), mockB, WithCostTracker(tracker))

	_, err := clientA.Judge(context.Background(), "prompt a")
	require.NoError(t, err)
	_, err = clientB.Judge(context.Background(), "prompt b")
	require.NoError(t, err)

	assert.Equal(t, int64(2), tracker.JudgmentCount())
	assert.Equal(t, int64(2), clientA.JudgmentCount())
}

// errorCache fails every operation, exercising the degrade-to-miss path.
type errorCache struct{}

func (errorCache) Get(context.Context, string) (any, bool, error) {
	return nil, false, errors.New("cache unavailable")
}
func (errorCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("cache unavailable")
}
func (errorCache) Delete(context.Context, string) error { return errors.New("cache unavailable") }
func (errorCache) Clear(context.Context) error          { return errors.New("cache unavailable") }
func (errorCache) Len(context.Context) (int, error)     { return 0, errors.New("cache unavailable") }

func TestJudgeCacheFailureDegradesToMiss(t *testing.T) {
	mock := llm.NewMockAdapter()
	client := newTestClient(t, testConfig(), mock, WithCache(errorCache{}))

	judgment, err := client.Judge(context.Background(), "prompt")
	require.NoError(t, err, "a broken cache must not break judging")
	assert.NotNil(t, judgment)
	assert.Equal(t, 1, mock.GetCallCount())
}
