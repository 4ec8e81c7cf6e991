package llm

import (
	"context"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTogetherAdapterDefaults(t *testing.T) {
	adapter, err := newTogetherAdapter(AdapterConfig{APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, ProviderTogether, adapter.Provider())
	assert.Equal(t, TogetherDefaultModel, adapter.Model())
}

func TestTogetherAdapterComplete(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := newChatCompletionServer(t, http.StatusOK,
		chatCompletionBody("Score: 9/10", 20, 5), &captured)
	defer server.Close()

	adapter, err := newTogetherAdapter(AdapterConfig{
		APIKey:  "k",
		Model:   "mistralai/Mixtral-8x7B-Instruct-v0.1",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	resp, err := adapter.Complete(context.Background(), Request{Prompt: "rate this"})
	require.NoError(t, err)

	assert.Equal(t, "Score: 9/10", resp.Text)
	assert.Equal(t, 25, resp.Usage.TotalTokens)
	assert.Equal(t, "mistralai/Mixtral-8x7B-Instruct-v0.1", captured.Model)
}

func TestTogetherAdapterErrorAttribution(t *testing.T) {
	body := map[string]any{
		"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
	}
	server := newChatCompletionServer(t, http.StatusTooManyRequests, body, nil)
	defer server.Close()

	adapter, err := newTogetherAdapter(AdapterConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = adapter.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	// Errors from the shared OpenAI-compatible wire must be attributed
	// to Together, not OpenAI.
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, string(ProviderTogether), pe.Provider)
	assert.Equal(t, ErrorTypeRateLimit, pe.Type)
	assert.True(t, adapter.IsRetryable(err))
}
