package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/domain"
)

// stubUsage is a fixed ledger snapshot.
type stubUsage struct {
	cost      float64
	tokens    int64
	judgments int64
}

func (s stubUsage) TotalCost() float64   { return s.cost }
func (s stubUsage) TotalTokens() int64   { return s.tokens }
func (s stubUsage) JudgmentCount() int64 { return s.judgments }

func TestNewBudgetGuardValidation(t *testing.T) {
	_, err := NewBudgetGuard(Budget{}, nil, nil)
	require.Error(t, err)

	_, err = NewBudgetGuard(Budget{MaxCostUSD: -1}, stubUsage{}, nil)
	require.Error(t, err)

	guard, err := NewBudgetGuard(Budget{MaxCostUSD: 10}, stubUsage{}, nil)
	require.NoError(t, err)
	require.NotNil(t, guard)
}

func TestBudgetGuardAdmitsUnderLimit(t *testing.T) {
	guard, err := NewBudgetGuard(
		Budget{MaxCostUSD: 1.0, MaxTokens: 1000, MaxJudgments: 10},
		stubUsage{cost: 0.5, tokens: 500, judgments: 5},
		nil,
	)
	require.NoError(t, err)

	assert.NoError(t, guard.Admit(context.Background()))
}

func TestBudgetGuardZeroMeansUnlimited(t *testing.T) {
	guard, err := NewBudgetGuard(Budget{}, stubUsage{cost: 1e9, tokens: 1 << 40, judgments: 1 << 30}, nil)
	require.NoError(t, err)

	assert.NoError(t, guard.Admit(context.Background()))
}

func TestBudgetGuardRejectsAtLimit(t *testing.T) {
	tests := []struct {
		name          string
		budget        Budget
		usage         stubUsage
		wantLimitType string
	}{
		{
			name:          "cost limit",
			budget:        Budget{MaxCostUSD: 1.0},
			usage:         stubUsage{cost: 1.0},
			wantLimitType: "cost",
		},
		{
			name:          "token limit",
			budget:        Budget{MaxTokens: 1000},
			usage:         stubUsage{tokens: 1200},
			wantLimitType: "tokens",
		},
		{
			name:          "judgment limit",
			budget:        Budget{MaxJudgments: 10},
			usage:         stubUsage{judgments: 10},
			wantLimitType: "judgments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard, err := NewBudgetGuard(tt.budget, tt.usage, nil)
			require.NoError(t, err)

			err = guard.Admit(context.Background())
			require.Error(t, err)

			var budgetErr *domain.BudgetExceededError
			require.ErrorAs(t, err, &budgetErr)
			assert.Equal(t, tt.wantLimitType, budgetErr.LimitType)
		})
	}
}

// recordingObserver captures admission outcomes.
type recordingObserver struct {
	calls  int
	lastOK bool
}

func (r *recordingObserver) Observe(_ context.Context, _ Budget, _ UsageSnapshot, err error) {
	r.calls++
	r.lastOK = err == nil
}

func TestBudgetGuardNotifiesObserver(t *testing.T) {
	observer := &recordingObserver{}
	guard, err := NewBudgetGuard(Budget{MaxJudgments: 1}, stubUsage{judgments: 0}, observer)
	require.NoError(t, err)

	require.NoError(t, guard.Admit(context.Background()))
	assert.Equal(t, 1, observer.calls)
	assert.True(t, observer.lastOK)

	guard, err = NewBudgetGuard(Budget{MaxJudgments: 1}, stubUsage{judgments: 1}, observer)
	require.NoError(t, err)

	require.Error(t, guard.Admit(context.Background()))
	assert.Equal(t, 2, observer.calls)
	assert.False(t, observer.lastOK)
}

func TestOTelBudgetObserverDoesNotPanic(t *testing.T) {
	// With no tracer provider installed the observer must still be safe
	// to call on both outcomes.
	observer := NewOTelBudgetObserver(nil)
	ctx := context.Background()

	observer.Observe(ctx, Budget{MaxCostUSD: 1}, UsageSnapshot{CostUSD: 0.95}, nil)
	observer.Observe(ctx, Budget{MaxCostUSD: 1}, UsageSnapshot{CostUSD: 1.2},
		domain.NewBudgetExceededError("cost", 1, 1.2))
}
