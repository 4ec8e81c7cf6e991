package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/verdictlabs/verdict/internal/domain"
)

// Anthropic defaults.
const (
	// AnthropicDefaultModel is used when no model is configured.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

	// anthropicDefaultMaxTokens applies when the request does not set a
	// cap; Anthropic's API requires max_tokens to be present.
	anthropicDefaultMaxTokens = 1024
)

func init() {
	RegisterAdapterFactory(ProviderAnthropic, newAnthropicAdapter)
}

// anthropicAdapter implements the Adapter capability set for Anthropic's
// Messages API.
type anthropicAdapter struct {
	client     anthropic.Client
	model      string
	classifier *errorClassifier
}

func newAnthropicAdapter(config AdapterConfig) (Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		validated, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(validated))
	}

	return &anthropicAdapter{
		client:     anthropic.NewClient(opts...),
		model:      model,
		classifier: &errorClassifier{provider: string(ProviderAnthropic)},
	}, nil
}

// Complete executes one Messages API attempt against Anthropic.
func (a *anthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	message, err := a.client.Messages.New(ctx, a.buildRequest(req))
	if err != nil {
		return nil, a.classify(err)
	}

	text, err := a.extractText(message)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:  text,
		Usage: a.extractUsage(message, req.Prompt, text),
	}, nil
}

// buildRequest translates the provider-agnostic request into Anthropic's
// shape: the system prompt rides in a dedicated top-level field, not the
// message array, and max_tokens is mandatory.
func (a *anthropicAdapter) buildRequest(req Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	if req.Temperature != nil {
		// Anthropic accepts temperature in [0, 1].
		params.Temperature = anthropic.Float(ClampFloat64(*req.Temperature, 0.0, 1.0))
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(ClampFloat64(*req.TopP, MinTopP, MaxTopP))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return params
}

// extractText concatenates the text blocks of the response envelope.
func (a *anthropicAdapter) extractText(message *anthropic.Message) (string, error) {
	var sb strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(content.Text)
		}
	}

	text := sb.String()
	if text == "" {
		return "", NewProviderError(string(ProviderAnthropic), ErrorTypeUnknown, 0,
			"empty response", ErrEmptyResponse)
	}
	return text, nil
}

// extractUsage reads Anthropic's usage block, estimating when absent.
func (a *anthropicAdapter) extractUsage(message *anthropic.Message, prompt, completion string) domain.TokenUsage {
	return usageFromCounts(int(message.Usage.InputTokens), int(message.Usage.OutputTokens), prompt, completion)
}

// classify maps Anthropic SDK errors onto the shared classification.
func (a *anthropicAdapter) classify(err error) error {
	if isContextError(err) {
		return a.classifier.classifyContext(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return a.classifier.classifyHTTP(apiErr.StatusCode, apiErr.Error(), err)
	}

	return NewProviderError(string(ProviderAnthropic), ErrorTypeNetwork, 0, "request failed", err)
}

// IsRetryable classifies an error from this adapter as transient or terminal.
func (a *anthropicAdapter) IsRetryable(err error) bool { return IsRetryableError(err) }

// Provider returns ProviderAnthropic.
func (a *anthropicAdapter) Provider() Provider { return ProviderAnthropic }

// Model returns the configured default model.
func (a *anthropicAdapter) Model() string { return a.model }
