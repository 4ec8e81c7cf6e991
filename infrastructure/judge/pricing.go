package judge

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/verdictlabs/verdict/internal/domain"
)

// ModelPricing holds per-1k-token prices in USD for one model.
type ModelPricing struct {
	// InputPer1K is the dollar price per 1000 prompt tokens.
	InputPer1K float64 `yaml:"input_per_1k"`

	// OutputPer1K is the dollar price per 1000 completion tokens.
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Cost computes the dollar cost of a usage record at these prices.
func (p ModelPricing) Cost(usage domain.TokenUsage) float64 {
	return float64(usage.PromptTokens)/1000*p.InputPer1K +
		float64(usage.CompletionTokens)/1000*p.OutputPer1K
}

// PricingTable maps model identifiers to per-token prices. It ships with
// a built-in snapshot and supports out-of-band updates via Register or a
// YAML overlay file. Safe for concurrent use.
type PricingTable struct {
	mu      sync.RWMutex
	entries map[string]ModelPricing
}

// defaultPricing is the built-in price snapshot. Prices drift; the
// overlay file is the supported update path between releases.
var defaultPricing = map[string]ModelPricing{
	// OpenAI
	"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo":   {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},

	// Anthropic
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-opus-20240229":     {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-3-haiku-20240307":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},

	// Together
	"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo": {InputPer1K: 0.00088, OutputPer1K: 0.00088},
	"meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo":  {InputPer1K: 0.00018, OutputPer1K: 0.00018},
	"mistralai/Mixtral-8x7B-Instruct-v0.1":         {InputPer1K: 0.0006, OutputPer1K: 0.0006},

	// Google
	"gemini-2.0-flash": {InputPer1K: 0.0001, OutputPer1K: 0.0004},
	"gemini-1.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.005},
}

// DefaultPricingTable returns a table seeded with the built-in snapshot.
// Each call returns an independent table so tests and sessions cannot
// contaminate each other through registration.
func DefaultPricingTable() *PricingTable {
	entries := make(map[string]ModelPricing, len(defaultPricing))
	for model, p := range defaultPricing {
		entries[model] = p
	}
	return &PricingTable{entries: entries}
}

// NewPricingTable returns an empty table; useful for tests that want full
// control over which models are priced.
func NewPricingTable() *PricingTable {
	return &PricingTable{entries: make(map[string]ModelPricing)}
}

// Lookup returns the pricing entry for a model and whether one exists.
func (t *PricingTable) Lookup(model string) (ModelPricing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[model]
	return p, ok
}

// Register adds or replaces the pricing entry for a model.
func (t *PricingTable) Register(model string, pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[model] = pricing
}

// Len returns the number of priced models.
func (t *PricingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LoadFile merges a YAML pricing document over the table. The document
// maps model identifiers to input_per_1k/output_per_1k values:
//
//	gpt-4o-mini:
//	  input_per_1k: 0.00015
//	  output_per_1k: 0.0006
//
// Existing entries for listed models are replaced; others are untouched.
func (t *PricingTable) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing file: %w", err)
	}

	var overlay map[string]ModelPricing
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse pricing file: %w", err)
	}

	// Validate before touching the table so a bad file cannot leave a
	// partial merge behind.
	for model, p := range overlay {
		if p.InputPer1K < 0 || p.OutputPer1K < 0 {
			return fmt.Errorf("negative price for model %q", model)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for model, p := range overlay {
		t.entries[model] = p
	}
	return nil
}
