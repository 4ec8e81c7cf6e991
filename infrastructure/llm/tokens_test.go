package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("four"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestUsageFromCounts(t *testing.T) {
	// Reported counts win over estimation.
	usage := usageFromCounts(42, 17, "prompt", "completion")
	assert.Equal(t, 42, usage.PromptTokens)
	assert.Equal(t, 17, usage.CompletionTokens)
	assert.Equal(t, 59, usage.TotalTokens)

	// Missing counts estimate from text, per side.
	usage = usageFromCounts(0, 17, strings.Repeat("x", 40), "completion")
	assert.Equal(t, 10, usage.PromptTokens)
	assert.Equal(t, 17, usage.CompletionTokens)
	assert.Equal(t, 27, usage.TotalTokens)
}
