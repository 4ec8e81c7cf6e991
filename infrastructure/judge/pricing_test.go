package judge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/infrastructure/llm"
	"github.com/verdictlabs/verdict/internal/domain"
)

func TestModelPricingCost(t *testing.T) {
	pricing := ModelPricing{InputPer1K: 0.15, OutputPer1K: 0.60}

	usage := domain.TokenUsage{PromptTokens: 500, CompletionTokens: 200, TotalTokens: 700}
	assert.InDelta(t, 0.195, pricing.Cost(usage), 1e-9)

	assert.Zero(t, pricing.Cost(domain.TokenUsage{}))
}

func TestDefaultPricingTableCoversDefaults(t *testing.T) {
	table := DefaultPricingTable()

	// Every provider default model must be priced out of the box.
	for _, model := range []string{
		llm.OpenAIDefaultModel,
		llm.AnthropicDefaultModel,
		llm.TogetherDefaultModel,
		llm.GoogleDefaultModel,
	} {
		pricing, ok := table.Lookup(model)
		assert.True(t, ok, "missing pricing for %s", model)
		assert.Greater(t, pricing.InputPer1K, 0.0)
		assert.Greater(t, pricing.OutputPer1K, 0.0)
	}
}

func TestDefaultPricingTablesAreIndependent(t *testing.T) {
	a := DefaultPricingTable()
	b := DefaultPricingTable()

	a.Register("custom-model", ModelPricing{InputPer1K: 1, OutputPer1K: 1})

	_, ok := b.Lookup("custom-model")
	assert.False(t, ok, "registration must not leak between tables")
}

func TestPricingTableRegisterAndLookup(t *testing.T) {
	table := NewPricingTable()
	assert.Zero(t, table.Len())

	_, ok := table.Lookup("m")
	assert.False(t, ok)

	table.Register("m", ModelPricing{InputPer1K: 0.5, OutputPer1K: 1.5})
	pricing, ok := table.Lookup("m")
	require.True(t, ok)
	assert.InDelta(t, 0.5, pricing.InputPer1K, 1e-9)
	assert.Equal(t, 1, table.Len())

	// Re-registering replaces the entry.
	table.Register("m", ModelPricing{InputPer1K: 0.6, OutputPer1K: 1.6})
	pricing, _ = table.Lookup("m")
	assert.InDelta(t, 0.6, pricing.InputPer1K, 1e-9)
	assert.Equal(t, 1, table.Len())
}

func TestPricingTableLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	doc := `
gpt-4o-mini:
  input_per_1k: 0.0002
  output_per_1k: 0.0008
new-model:
  input_per_1k: 0.001
  output_per_1k: 0.002
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	table := DefaultPricingTable()
	require.NoError(t, table.LoadFile(path))

	// Listed models are replaced.
	pricing, ok := table.Lookup("gpt-4o-mini")
	require.True(t, ok)
	assert.InDelta(t, 0.0002, pricing.InputPer1K, 1e-9)

	// New models are added.
	pricing, ok = table.Lookup("new-model")
	require.True(t, ok)
	assert.InDelta(t, 0.002, pricing.OutputPer1K, 1e-9)

	// Unlisted models are untouched.
	_, ok = table.Lookup("claude-3-5-sonnet-20241022")
	assert.True(t, ok)
}

func TestPricingTableLoadFileRejectsNegativePrices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	doc := `
bad-model:
  input_per_1k: -0.5
  output_per_1k: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	table := NewPricingTable()
	err := table.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative price")
	assert.Zero(t, table.Len(), "a rejected file must not partially merge")
}

func TestPricingTableLoadFileMissing(t *testing.T) {
	err := NewPricingTable().LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestPricingTableLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o600))

	err := NewPricingTable().LoadFile(path)
	require.Error(t, err)
}
