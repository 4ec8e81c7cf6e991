// Package llm implements the provider adapter layer of the judge client.
// Each supported provider (OpenAI, Anthropic, Together, Google) gets one
// adapter that owns its request shape, auth, response envelope, and error
// classification. The judge client stays provider-agnostic: it speaks only
// Request/Response and the Adapter interface.
//
// Cross-cutting behavior (rate limiting, circuit breaking, tracing) is
// layered on through Middleware, which wraps any Adapter:
//
//	adapter, err := llm.NewAdapter(llm.ProviderOpenAI, llm.AdapterConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	}, llm.RateLimitMiddleware(10, 20))
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/verdictlabs/verdict/internal/domain"
)

// Provider identifies a supported LLM vendor.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderTogether  Provider = "together"
	ProviderGoogle    Provider = "google"
)

// Request is the provider-agnostic completion request. Adapters translate
// it into their provider's wire format.
type Request struct {
	// Prompt is the user-role message content. Required.
	Prompt string

	// System is an optional system-role instruction. Providers without a
	// distinct system role prepend it to the prompt.
	System string

	// Model overrides the adapter's configured model when non-empty.
	Model string

	// Temperature controls sampling randomness. Nil uses the provider default.
	Temperature *float64

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int

	// TopP enables nucleus sampling. Nil uses the provider default.
	TopP *float64
}

// Response carries the generated text and the usage the provider billed.
type Response struct {
	// Text is the generated completion content.
	Text string

	// Usage is the token accounting for the call. Adapters fall back to
	// estimation when the provider omits counts, and always return a
	// normalized record (total = prompt + completion).
	Usage domain.TokenUsage
}

// Adapter is the per-provider capability set. Each variant owns request
// building, text extraction, usage extraction, and retryability
// classification for its provider. Adding a provider means implementing
// this interface and registering a factory; nothing else changes.
type Adapter interface {
	// Complete executes a single completion attempt. It does not retry;
	// the caller owns retry and timeout policy via ctx.
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsRetryable classifies an error returned by Complete as transient
	// (rate limit, server error, network, timeout) or terminal.
	IsRetryable(err error) bool

	// Provider returns the vendor this adapter targets.
	Provider() Provider

	// Model returns the configured default model.
	Model() string
}

// AdapterConfig holds the settings common to all adapter factories.
type AdapterConfig struct {
	// APIKey authenticates requests. Required for every provider.
	APIKey string

	// Model is the default model for requests that do not override it.
	// Empty selects the provider's default.
	Model string

	// BaseURL overrides the provider endpoint, mainly for tests and
	// OpenAI-compatible gateways. Empty uses the provider default.
	BaseURL string

	// Timeout bounds the underlying HTTP client when the SDK supports it.
	// Per-attempt deadlines are still enforced by the caller via ctx.
	Timeout time.Duration
}

// Middleware wraps an Adapter to add cross-cutting behavior such as rate
// limiting or tracing without touching provider logic.
type Middleware func(Adapter) Adapter

// AdapterFactory creates an Adapter from configuration.
type AdapterFactory func(AdapterConfig) (Adapter, error)

var adapterFactories = map[Provider]AdapterFactory{}

// RegisterAdapterFactory registers a factory for a provider. Built-in
// providers register themselves in init; custom providers can be added
// the same way.
func RegisterAdapterFactory(p Provider, factory AdapterFactory) {
	adapterFactories[p] = factory
}

// NewAdapter creates an adapter for the given provider and applies the
// middleware chain. Middleware is applied in reverse so the first listed
// wrapper is outermost.
func NewAdapter(p Provider, config AdapterConfig, mw ...Middleware) (Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := adapterFactories[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", p)
	}

	adapter, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", p, err)
	}

	for i := len(mw) - 1; i >= 0; i-- {
		adapter = mw[i](adapter)
	}

	return adapter, nil
}

// SupportedProviders returns the providers with registered factories.
func SupportedProviders() []Provider {
	providers := make([]Provider, 0, len(adapterFactories))
	for p := range adapterFactories {
		providers = append(providers, p)
	}
	return providers
}
