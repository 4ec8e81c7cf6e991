package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdictlabs/verdict/internal/domain"
	"github.com/verdictlabs/verdict/internal/ports"
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver records budget admission decisions as OpenTelemetry
// spans and optional gauge metrics, including warning events as usage
// approaches a limit.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
}

// NewOTelBudgetObserver creates an observer. The metrics collector is
// optional.
func NewOTelBudgetObserver(metrics ports.MetricsCollector) *OTelBudgetObserver {
	return &OTelBudgetObserver{metrics: metrics}
}

// Observe implements BudgetObserver.
func (o *OTelBudgetObserver) Observe(ctx context.Context, budget Budget, usage UsageSnapshot, err error) {
	tracer := otel.Tracer("budget-guard")
	_, span := tracer.Start(ctx, "budget.admit")
	defer span.End()

	span.SetAttributes(
		attribute.Float64("budget.cost_usd_used", usage.CostUSD),
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.judgments_used", usage.Judgments),
	)
	if budget.MaxCostUSD > 0 {
		span.SetAttributes(attribute.Float64("budget.max_cost_usd", budget.MaxCostUSD))
	}
	if budget.MaxTokens > 0 {
		span.SetAttributes(attribute.Int64("budget.max_tokens", budget.MaxTokens))
	}
	if budget.MaxJudgments > 0 {
		span.SetAttributes(attribute.Int64("budget.max_judgments", budget.MaxJudgments))
	}

	if err != nil {
		var budgetErr *domain.BudgetExceededError
		if errors.As(err, &budgetErr) {
			span.AddEvent("budget.exceeded", trace.WithAttributes(
				attribute.String("limit_type", budgetErr.LimitType),
				attribute.Float64("limit_value", budgetErr.Limit),
				attribute.Float64("used_value", budgetErr.Used),
			))
			if o.metrics != nil {
				o.metrics.RecordCounter("budget_exceeded_total", 1,
					map[string]string{"limit_type": budgetErr.LimitType})
			}
		}
		span.SetStatus(codes.Error, "budget limit exceeded")
		return
	}

	o.warnNearLimit(span, usage, budget)
	o.updateGauges(usage, budget)
	span.SetStatus(codes.Ok, "admitted")
}

// warnNearLimit adds span events when a dimension crosses 80% or 90% of
// its limit, so dashboards can alert before calls start failing.
func (o *OTelBudgetObserver) warnNearLimit(span trace.Span, usage UsageSnapshot, budget Budget) {
	const warningThreshold = 0.8
	const criticalThreshold = 0.9

	check := func(resource string, used, limit float64) {
		if limit <= 0 {
			return
		}
		fraction := used / limit
		switch {
		case fraction >= criticalThreshold:
			span.AddEvent("budget.threshold.critical", trace.WithAttributes(
				attribute.String("resource_type", resource),
				attribute.Float64("usage_percentage", fraction*100),
			))
		case fraction >= warningThreshold:
			span.AddEvent("budget.threshold.warning", trace.WithAttributes(
				attribute.String("resource_type", resource),
				attribute.Float64("usage_percentage", fraction*100),
			))
		}
	}

	check("cost", usage.CostUSD, budget.MaxCostUSD)
	check("tokens", float64(usage.Tokens), float64(budget.MaxTokens))
	check("judgments", float64(usage.Judgments), float64(budget.MaxJudgments))
}

// updateGauges publishes current and remaining budget values.
func (o *OTelBudgetObserver) updateGauges(usage UsageSnapshot, budget Budget) {
	if o.metrics == nil {
		return
	}

	o.metrics.RecordGauge("budget_cost_usd_used", usage.CostUSD, nil)
	o.metrics.RecordGauge("budget_tokens_used", float64(usage.Tokens), nil)
	o.metrics.RecordGauge("budget_judgments_used", float64(usage.Judgments), nil)

	if budget.MaxCostUSD > 0 {
		o.metrics.RecordGauge("budget_remaining_cost_usd", budget.MaxCostUSD-usage.CostUSD, nil)
	}
	if budget.MaxTokens > 0 {
		o.metrics.RecordGauge("budget_remaining_tokens", float64(budget.MaxTokens-usage.Tokens), nil)
	}
	if budget.MaxJudgments > 0 {
		o.metrics.RecordGauge("budget_remaining_judgments", float64(budget.MaxJudgments-usage.Judgments), nil)
	}
}
