package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/verdictlabs/verdict/internal/domain"
)

// Together defaults. Together exposes an OpenAI-compatible chat
// completions API, so the adapter reuses the OpenAI SDK pointed at
// Together's endpoint; only the provider identity and error attribution
// differ.
const (
	// TogetherDefaultModel is used when no model is configured.
	TogetherDefaultModel = "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo"

	// TogetherBaseURL is Together's OpenAI-compatible endpoint.
	TogetherBaseURL = "https://api.together.xyz/v1"
)

func init() {
	RegisterAdapterFactory(ProviderTogether, newTogetherAdapter)
}

// togetherAdapter implements the Adapter capability set for Together's
// OpenAI-compatible API.
type togetherAdapter struct {
	client     *openai.Client
	model      string
	classifier *errorClassifier
}

func newTogetherAdapter(config AdapterConfig) (Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = TogetherDefaultModel
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = TogetherBaseURL
	}
	validated, err := ValidateBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = validated
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &togetherAdapter{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		classifier: &errorClassifier{provider: string(ProviderTogether)},
	}, nil
}

// Complete executes one chat completion attempt against Together.
func (a *togetherAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return nil, a.classify(err)
	}

	text, err := a.extractText(resp)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:  text,
		Usage: a.extractUsage(resp, req.Prompt, text),
	}, nil
}

// buildRequest translates the provider-agnostic request into the
// OpenAI-compatible message-array shape Together accepts.
func (a *togetherAdapter) buildRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	out := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	if req.Temperature != nil {
		out.Temperature = float32(ClampFloat64(*req.Temperature, MinTemperature, MaxTemperature))
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.TopP != nil {
		out.TopP = float32(ClampFloat64(*req.TopP, MinTopP, MaxTopP))
	}

	return out
}

// extractText pulls the generated content from the response envelope.
func (a *togetherAdapter) extractText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", NewProviderError(string(ProviderTogether), ErrorTypeUnknown, 0,
			"no response choices returned", ErrNoResponseChoice)
	}
	return resp.Choices[0].Message.Content, nil
}

// extractUsage reads the usage block. Together's open models frequently
// omit it, in which case counts are estimated from text length.
func (a *togetherAdapter) extractUsage(resp openai.ChatCompletionResponse, prompt, completion string) domain.TokenUsage {
	return usageFromCounts(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, prompt, completion)
}

// classify maps errors from the OpenAI-compatible wire onto the shared
// classification, attributed to Together.
func (a *togetherAdapter) classify(err error) error {
	if isContextError(err) {
		return a.classifier.classifyContext(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return a.classifier.classifyHTTP(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError(string(ProviderTogether), ErrorTypeNetwork, 0, "request failed", err)
}

// IsRetryable classifies an error from this adapter as transient or terminal.
func (a *togetherAdapter) IsRetryable(err error) bool { return IsRetryableError(err) }

// Provider returns ProviderTogether.
func (a *togetherAdapter) Provider() Provider { return ProviderTogether }

// Model returns the configured default model.
func (a *togetherAdapter) Model() string { return a.model }
