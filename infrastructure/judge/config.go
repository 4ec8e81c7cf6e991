// Package judge implements the LLM-as-judge evaluation client: a single
// Judge entry point that routes a formatted prompt through a provider
// adapter with caching, bounded concurrency, retry/backoff, response
// parsing, and cost accounting.
package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/verdictlabs/verdict/infrastructure/llm"
	"github.com/verdictlabs/verdict/internal/domain"
)

// Default configuration values.
const (
	// DefaultTimeoutSeconds bounds each provider attempt.
	DefaultTimeoutSeconds = 30
	// DefaultMaxRetries is the retry budget for transient failures.
	DefaultMaxRetries = 2
	// DefaultMaxTokens caps judge reasoning length.
	DefaultMaxTokens = 512
	// DefaultTemperature keeps scoring deterministic.
	DefaultTemperature = 0.0
	// DefaultMaxConcurrency caps simultaneous in-flight provider calls.
	DefaultMaxConcurrency = 10
	// DefaultCacheTTL is how long a cached judgment stays fresh.
	DefaultCacheTTL = time.Hour
	// DefaultRetryBaseDelay is the first backoff; it doubles per attempt.
	DefaultRetryBaseDelay = 1 * time.Second
)

// Config selects the provider, model, and call policy for a judge client.
// It is a value object: construct it (directly, via a preset, or from the
// environment), hand it to NewClient, and never mutate it afterwards.
type Config struct {
	// Provider selects the LLM vendor.
	Provider llm.Provider `env:"JUDGE_PROVIDER, default=openai" validate:"required"`

	// Model is the judge model identifier. Empty selects the provider
	// default. Models absent from the pricing table still work; their
	// cost records carry a zero dollar amount.
	Model string `env:"JUDGE_MODEL"`

	// APIKey authenticates with the provider. Required.
	APIKey string `env:"JUDGE_API_KEY" validate:"required"`

	// BaseURL overrides the provider endpoint. Optional.
	BaseURL string `env:"JUDGE_BASE_URL"`

	// Temperature controls sampling randomness.
	Temperature float64 `env:"JUDGE_TEMPERATURE, default=0.0" validate:"gte=0,lte=2"`

	// MaxTokens caps the completion length.
	MaxTokens int `env:"JUDGE_MAX_TOKENS, default=512" validate:"gt=0"`

	// TimeoutSeconds bounds each attempt, including each retry,
	// independently.
	TimeoutSeconds int `env:"JUDGE_TIMEOUT_SECONDS, default=30" validate:"gt=0"`

	// MaxRetries is the number of additional attempts after the first,
	// used only for transient failures.
	MaxRetries int `env:"JUDGE_MAX_RETRIES, default=2" validate:"gte=0"`

	// CacheJudgments enables the content-hash judgment cache.
	CacheJudgments bool `env:"JUDGE_CACHE, default=true"`

	// CacheTTL is the cache entry lifetime. Zero means DefaultCacheTTL.
	CacheTTL time.Duration `env:"JUDGE_CACHE_TTL"`

	// MaxConcurrency caps simultaneous in-flight provider calls.
	// Zero means DefaultMaxConcurrency.
	MaxConcurrency int `env:"JUDGE_MAX_CONCURRENCY" validate:"gte=0"`

	// DefaultScale overrides the parser's magnitude heuristic for bare
	// scores without an explicit denominator (e.g. 10 or 100).
	// Zero keeps the heuristic.
	DefaultScale float64 `env:"JUDGE_DEFAULT_SCALE" validate:"gte=0"`

	// RetryBaseDelay is the initial backoff between attempts; it doubles
	// each retry. Zero means DefaultRetryBaseDelay. Exposed mainly so
	// tests do not sleep for real seconds.
	RetryBaseDelay time.Duration
}

// withDefaults returns a copy with zero-valued policy fields filled in.
func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return c
}

// Validate checks the configuration, failing fast before any network I/O.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

var validate = validator.New()

// ConfigFromEnv builds a Config from JUDGE_* environment variables.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// Presets. Each returns a plain Config the caller completes with an API
// key (and may further adjust) before constructing a client.

// FastConfig favors latency and cost over judgment quality.
func FastConfig(apiKey string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderOpenAI
	cfg.Model = "gpt-4o-mini"
	return cfg
}

// BalancedConfig trades a little latency for a stronger judge model.
func BalancedConfig(apiKey string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderAnthropic
	cfg.Model = "claude-3-5-haiku-20241022"
	return cfg
}

// BestConfig selects the strongest supported judge model.
func BestConfig(apiKey string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderAnthropic
	cfg.Model = "claude-3-5-sonnet-20241022"
	return cfg
}

// OpenAIConfig is a provider shortcut; empty model selects the default.
func OpenAIConfig(apiKey, model string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderOpenAI
	cfg.Model = model
	return cfg
}

// AnthropicConfig is a provider shortcut; empty model selects the default.
func AnthropicConfig(apiKey, model string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderAnthropic
	cfg.Model = model
	return cfg
}

// TogetherConfig is a provider shortcut; empty model selects the default.
func TogetherConfig(apiKey, model string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderTogether
	cfg.Model = model
	return cfg
}

// GoogleConfig is a provider shortcut; empty model selects the default.
func GoogleConfig(apiKey, model string) Config {
	cfg := baseConfig(apiKey)
	cfg.Provider = llm.ProviderGoogle
	cfg.Model = model
	return cfg
}

func baseConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		TimeoutSeconds: DefaultTimeoutSeconds,
		MaxRetries:     DefaultMaxRetries,
		CacheJudgments: true,
	}
}
