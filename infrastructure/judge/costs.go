package judge

import (
	"sync"

	"github.com/verdictlabs/verdict/internal/domain"
	"github.com/verdictlabs/verdict/internal/ports"
)

// ModelCost is one model's accumulated usage and spend.
type ModelCost struct {
	// Usage is the summed token usage across recorded judgments.
	Usage domain.TokenUsage `json:"usage"`

	// CostUSD is the summed dollar cost.
	CostUSD float64 `json:"cost_usd"`

	// Judgments is the number of recorded judgments for this model.
	Judgments int64 `json:"judgments"`

	// PricingKnown is false when any recorded usage lacked a pricing
	// table entry, meaning CostUSD undercounts real spend.
	PricingKnown bool `json:"pricing_known"`
}

// CostSummary is a point-in-time snapshot of the ledger.
type CostSummary struct {
	// TotalCostUSD is the spend across all models.
	TotalCostUSD float64 `json:"total_cost_usd"`

	// TotalTokens is the token count across all models.
	TotalTokens int64 `json:"total_tokens"`

	// JudgmentCount is the number of recorded judgments.
	JudgmentCount int64 `json:"judgment_count"`

	// ByModel breaks the totals down per model identifier.
	ByModel map[string]ModelCost `json:"by_model"`
}

var _ ports.UsageReader = (*CostTracker)(nil)

// CostTracker is the cost ledger: it accumulates token usage and dollar
// cost per model plus global totals, and is safe for concurrent recording
// from in-flight judge calls. Construct one per evaluation session (or
// share a process-wide instance) and Reset between independent runs.
//
// Invariant: the global totals always equal the sum over per-model
// entries; both are updated under one lock so a half-updated ledger is
// never observable.
type CostTracker struct {
	mu      sync.RWMutex
	pricing *PricingTable
	byModel map[string]*ModelCost

	totalCost   float64
	totalTokens int64
	judgments   int64
}

// NewCostTracker creates a ledger priced by the given table.
// A nil table means every model is treated as unpriced.
func NewCostTracker(pricing *PricingTable) *CostTracker {
	if pricing == nil {
		pricing = NewPricingTable()
	}
	return &CostTracker{
		pricing: pricing,
		byModel: make(map[string]*ModelCost),
	}
}

// Record adds one judgment's usage to the ledger and returns the derived
// cost. Unknown models record token usage with a zero cost and
// PricingKnown=false instead of failing.
func (t *CostTracker) Record(model string, usage domain.TokenUsage) domain.JudgmentCost {
	usage = usage.Normalized()

	pricing, known := t.pricing.Lookup(model)
	var costUSD float64
	if known {
		costUSD = pricing.Cost(usage)
	}

	t.mu.Lock()
	entry, ok := t.byModel[model]
	if !ok {
		entry = &ModelCost{PricingKnown: true}
		t.byModel[model] = entry
	}
	entry.Usage = entry.Usage.Add(usage)
	entry.CostUSD += costUSD
	entry.Judgments++
	entry.PricingKnown = entry.PricingKnown && known

	t.totalCost += costUSD
	t.totalTokens += int64(usage.TotalTokens)
	t.judgments++
	t.mu.Unlock()

	return domain.JudgmentCost{
		Model:        model,
		Usage:        usage,
		CostUSD:      costUSD,
		PricingKnown: known,
	}
}

// Summary returns a consistent snapshot of all aggregates.
func (t *CostTracker) Summary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byModel := make(map[string]ModelCost, len(t.byModel))
	for model, entry := range t.byModel {
		byModel[model] = *entry
	}

	return CostSummary{
		TotalCostUSD:  t.totalCost,
		TotalTokens:   t.totalTokens,
		JudgmentCount: t.judgments,
		ByModel:       byModel,
	}
}

// TotalCost returns the accumulated spend in USD.
func (t *CostTracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCost
}

// TotalTokens returns the accumulated token count.
func (t *CostTracker) TotalTokens() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalTokens
}

// JudgmentCount returns the number of recorded judgments.
func (t *CostTracker) JudgmentCount() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.judgments
}

// CostsByModel returns the per-model spend in USD.
func (t *CostTracker) CostsByModel() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	costs := make(map[string]float64, len(t.byModel))
	for model, entry := range t.byModel {
		costs[model] = entry.CostUSD
	}
	return costs
}

// UsageByModel returns the per-model token usage.
func (t *CostTracker) UsageByModel() map[string]domain.TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	usage := make(map[string]domain.TokenUsage, len(t.byModel))
	for model, entry := range t.byModel {
		usage[model] = entry.Usage
	}
	return usage
}

// Reset zeroes all aggregates. Intended for session boundaries and test
// isolation; the judge client never calls it mid-flight.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = make(map[string]*ModelCost)
	t.totalCost = 0
	t.totalTokens = 0
	t.judgments = 0
}
