package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/verdictlabs/verdict/internal/domain"
)

// GoogleDefaultModel is used when no model is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterAdapterFactory(ProviderGoogle, newGoogleAdapter)
}

// googleAdapter implements the Adapter capability set for Google's Gemini
// API via the genai SDK.
type googleAdapter struct {
	client     *genai.Client
	model      string
	classifier *errorClassifier
}

func newGoogleAdapter(config AdapterConfig) (Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleAdapter{
		client:     client,
		model:      model,
		classifier: &errorClassifier{provider: string(ProviderGoogle)},
	}, nil
}

// Complete executes one GenerateContent attempt against Gemini.
func (a *googleAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, a.buildRequest(req), a.buildGenerationConfig(req))
	if err != nil {
		return nil, a.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, NewProviderError(string(ProviderGoogle), ErrorTypeUnknown, 0,
			"empty response", ErrEmptyResponse)
	}

	return &Response{
		Text:  text,
		Usage: a.extractUsage(resp, req.Prompt, text),
	}, nil
}

// buildRequest translates the request into Gemini content. Gemini has no
// separate system role on this path, so the system prompt is prepended.
func (a *googleAdapter) buildRequest(req Request) []*genai.Content {
	prompt := req.Prompt
	if req.System != "" {
		prompt = fmt.Sprintf("System: %s\n\nUser: %s", req.System, req.Prompt)
	}
	return []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
}

// buildGenerationConfig maps sampling parameters onto Gemini's config.
func (a *googleAdapter) buildGenerationConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(ClampFloat64(*req.Temperature, MinTemperature, MaxTemperature)))
	}
	if req.MaxTokens > 0 {
		if req.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}
	}
	if req.TopP != nil {
		config.TopP = genai.Ptr(float32(ClampFloat64(*req.TopP, MinTopP, MaxTopP)))
	}

	return config
}

// extractUsage reads Gemini's usage metadata, estimating when absent.
func (a *googleAdapter) extractUsage(resp *genai.GenerateContentResponse, prompt, completion string) domain.TokenUsage {
	var promptTokens, completionTokens int
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return usageFromCounts(promptTokens, completionTokens, prompt, completion)
}

// classify maps Google API errors onto the shared classification, with
// safety-filter blocks surfaced as content policy errors.
func (a *googleAdapter) classify(err error) error {
	if isContextError(err) {
		return a.classifier.classifyContext(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}

		if isContentPolicyError(apiErr) {
			return NewProviderError(string(ProviderGoogle), ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		return a.classifier.classifyHTTP(apiErr.Code, message, err)
	}

	return NewProviderError(string(ProviderGoogle), ErrorTypeNetwork, 0, "request failed", err)
}

// isContentPolicyError detects safety-filter rejections.
func isContentPolicyError(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "safety") || strings.Contains(lower, "policy") || strings.Contains(lower, "blocked") {
		return true
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}

// IsRetryable classifies an error from this adapter as transient or terminal.
func (a *googleAdapter) IsRetryable(err error) bool { return IsRetryableError(err) }

// Provider returns ProviderGoogle.
func (a *googleAdapter) Provider() Provider { return ProviderGoogle }

// Model returns the configured default model.
func (a *googleAdapter) Model() string { return a.model }
