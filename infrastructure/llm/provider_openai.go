package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/verdictlabs/verdict/internal/domain"
)

// OpenAIDefaultModel is used when no model is configured.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterAdapterFactory(ProviderOpenAI, newOpenAIAdapter)
}

// openAIAdapter implements the Adapter capability set for OpenAI's chat
// completions API.
type openAIAdapter struct {
	client     *openai.Client
	model      string
	classifier *errorClassifier
}

func newOpenAIAdapter(config AdapterConfig) (Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validated, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		clientConfig.BaseURL = validated
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIAdapter{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		classifier: &errorClassifier{provider: string(ProviderOpenAI)},
	}, nil
}

// Complete executes one chat completion attempt against OpenAI.
func (a *openAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
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

// buildRequest translates the provider-agnostic request into OpenAI's
// message-array shape, with the system prompt as a system-role message.
func (a *openAIAdapter) buildRequest(req Request) openai.ChatCompletionRequest {
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
func (a *openAIAdapter) extractText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", NewProviderError(string(ProviderOpenAI), ErrorTypeUnknown, 0,
			"no response choices returned", ErrNoResponseChoice)
	}
	return resp.Choices[0].Message.Content, nil
}

// extractUsage reads the usage block, estimating when counts are absent.
func (a *openAIAdapter) extractUsage(resp openai.ChatCompletionResponse, prompt, completion string) domain.TokenUsage {
	return usageFromCounts(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, prompt, completion)
}

// classify maps OpenAI SDK errors onto the shared classification.
func (a *openAIAdapter) classify(err error) error {
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

	// SDK-level transport failures arrive as plain errors.
	return NewProviderError(string(ProviderOpenAI), ErrorTypeNetwork, 0, "request failed", err)
}

// IsRetryable classifies an error from this adapter as transient or terminal.
func (a *openAIAdapter) IsRetryable(err error) bool { return IsRetryableError(err) }

// Provider returns ProviderOpenAI.
func (a *openAIAdapter) Provider() Provider { return ProviderOpenAI }

// Model returns the configured default model.
func (a *openAIAdapter) Model() string { return a.model }
