// Package domain contains the core value objects of the judge client:
// judgments, token usage, and derived costs. Types in this package are
// plain data with no provider or transport dependencies.
package domain

// TokenUsage records the token consumption of a single provider call.
// All counts are non-negative; TotalTokens is always the sum of the
// prompt and completion counts.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the request payload.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens the model generated.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is PromptTokens + CompletionTokens. Providers that omit
	// this field have it recomputed by Normalized.
	TotalTokens int `json:"total_tokens"`
}

// Normalized returns a copy of the usage with negative counts zeroed and
// TotalTokens recomputed from the prompt and completion counts.
func (u TokenUsage) Normalized() TokenUsage {
	if u.PromptTokens < 0 {
		u.PromptTokens = 0
	}
	if u.CompletionTokens < 0 {
		u.CompletionTokens = 0
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// JudgmentCost is the monetary projection of a TokenUsage against a
// pricing table entry. It is computed once per call and never
// retroactively adjusted when prices change.
type JudgmentCost struct {
	// Model is the model identifier the cost was computed for.
	Model string `json:"model"`

	// Usage is the token usage the cost was derived from.
	Usage TokenUsage `json:"usage"`

	// CostUSD is the dollar cost of the call. Zero when the model is not
	// present in the pricing table.
	CostUSD float64 `json:"cost_usd"`

	// PricingKnown reports whether the model had a pricing table entry.
	// When false, CostUSD is zero and only token counts were recorded.
	PricingKnown bool `json:"pricing_known"`
}

// Judgment is the normalized result of one LLM-as-judge evaluation.
// Instances are constructed once by the response parser and are immutable
// thereafter; each call produces its own instance.
type Judgment struct {
	// Score is the normalized score in [0, 1].
	Score float64 `json:"score"`

	// Reasoning is the judge model's explanation for the score.
	// May be empty.
	Reasoning string `json:"reasoning"`

	// Confidence expresses how much the parsed score can be trusted,
	// in [0, 1]. Degraded parse strategies lower it; a fully unparseable
	// response yields zero.
	Confidence float64 `json:"confidence"`

	// RawResponse preserves the verbatim provider output for debugging.
	RawResponse string `json:"raw_response"`

	// Metadata carries parse strategy details and call annotations such
	// as the provider and model that produced the response.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Unparsed reports whether the judgment was produced by the terminal
// fallback, meaning no numeric score was found in the response.
func (j Judgment) Unparsed() bool {
	v, ok := j.Metadata["unparsed"].(bool)
	return ok && v
}
