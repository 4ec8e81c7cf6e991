// Package middleware provides cross-cutting concerns around the judge
// client: budget admission against the cost ledger, Prometheus metrics,
// and OpenTelemetry observability hooks.
package middleware

import (
	"context"
	"fmt"

	"github.com/verdictlabs/verdict/internal/domain"
	"github.com/verdictlabs/verdict/internal/ports"
)

// Budget defines session-level spend limits for judge calls.
// Zero for any dimension means unlimited.
type Budget struct {
	// MaxCostUSD limits the accumulated dollar spend.
	MaxCostUSD float64

	// MaxTokens limits the accumulated token count.
	MaxTokens int64

	// MaxJudgments limits the number of completed judgments.
	MaxJudgments int64
}

// UsageSnapshot is the ledger state observed at admission time.
type UsageSnapshot struct {
	CostUSD   float64
	Tokens    int64
	Judgments int64
}

// BudgetObserver receives the outcome of each admission decision.
// Implementations add tracing or metrics without coupling observability
// to the admission logic; err is nil when the call was admitted.
type BudgetObserver interface {
	Observe(ctx context.Context, budget Budget, usage UsageSnapshot, err error)
}

// BudgetGuard blocks judge calls once the cost ledger crosses a limit.
// It reads the ledger through ports.UsageReader and holds no mutable
// state of its own, so a single guard can serve concurrent callers.
//
// Admission races are tolerated: two calls admitted just under the limit
// may both complete and overshoot by one call's usage. The guard bounds
// spend, it does not serialize calls.
type BudgetGuard struct {
	budget   Budget
	usage    ports.UsageReader
	observer BudgetObserver
}

// NewBudgetGuard creates a guard over the given ledger. The observer is
// optional.
func NewBudgetGuard(budget Budget, usage ports.UsageReader, observer BudgetObserver) (*BudgetGuard, error) {
	if usage == nil {
		return nil, fmt.Errorf("budget guard: usage reader is required")
	}
	if budget.MaxCostUSD < 0 || budget.MaxTokens < 0 || budget.MaxJudgments < 0 {
		return nil, fmt.Errorf("budget guard: limits cannot be negative")
	}
	return &BudgetGuard{budget: budget, usage: usage, observer: observer}, nil
}

// Admit returns nil when the ledger is within every configured limit and
// a *domain.BudgetExceededError naming the first exceeded dimension
// otherwise.
func (g *BudgetGuard) Admit(ctx context.Context) error {
	snapshot := UsageSnapshot{
		CostUSD:   g.usage.TotalCost(),
		Tokens:    g.usage.TotalTokens(),
		Judgments: g.usage.JudgmentCount(),
	}

	err := g.check(snapshot)
	if g.observer != nil {
		g.observer.Observe(ctx, g.budget, snapshot, err)
	}
	return err
}

func (g *BudgetGuard) check(usage UsageSnapshot) error {
	if g.budget.MaxCostUSD > 0 && usage.CostUSD >= g.budget.MaxCostUSD {
		return domain.NewBudgetExceededError("cost", g.budget.MaxCostUSD, usage.CostUSD)
	}
	if g.budget.MaxTokens > 0 && usage.Tokens >= g.budget.MaxTokens {
		return domain.NewBudgetExceededError("tokens", float64(g.budget.MaxTokens), float64(usage.Tokens))
	}
	if g.budget.MaxJudgments > 0 && usage.Judgments >= g.budget.MaxJudgments {
		return domain.NewBudgetExceededError("judgments", float64(g.budget.MaxJudgments), float64(usage.Judgments))
	}
	return nil
}
