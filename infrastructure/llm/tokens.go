package llm

import "github.com/verdictlabs/verdict/internal/domain"

// charsPerToken is the average character-per-token ratio used when a
// provider omits usage counts. Roughly accurate for English text.
const charsPerToken = 4

// EstimateTokens approximates the token count of text. Used only as a
// fallback when the provider's usage block is missing or zero.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / charsPerToken
}

// tokenCount prefers the provider-reported count and falls back to
// estimation from the text when the count is absent.
func tokenCount(reported int, text string) int {
	if reported > 0 {
		return reported
	}
	return EstimateTokens(text)
}

// usageFromCounts builds a normalized TokenUsage from prompt/completion
// counts, estimating from the given texts where counts are missing.
func usageFromCounts(promptTokens, completionTokens int, prompt, completion string) domain.TokenUsage {
	return domain.TokenUsage{
		PromptTokens:     tokenCount(promptTokens, prompt),
		CompletionTokens: tokenCount(completionTokens, completion),
	}.Normalized()
}
