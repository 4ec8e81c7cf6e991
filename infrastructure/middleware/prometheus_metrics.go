package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/verdictlabs/verdict/internal/ports"
)

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes judgment throughput, latency, scores, token and
// dollar spend, cache effectiveness, and retry pressure.
type PrometheusMetrics struct {
	judgments    *prometheus.CounterVec
	events       *prometheus.CounterVec
	costUSD      *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	scores       *prometheus.HistogramVec
	tokens       *prometheus.HistogramVec
	budgetGauges *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a collector registered against reg.
// A nil reg uses the default global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		judgments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgments_total",
				Help: "Total number of judge calls by status and model.",
			},
			[]string{"status", "model"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judge_events_total",
				Help: "Auxiliary judge events: cache hits/misses, retries, rejections.",
			},
			[]string{"event"},
		),
		costUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judge_cost_usd_total",
				Help: "Accumulated judge spend in USD by model.",
			},
			[]string{"model"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judge_duration_seconds",
				Help:    "End-to-end judge call latency, including retries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "model"},
		),
		scores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judge_score",
				Help:    "Distribution of normalized judgment scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"model"},
		),
		tokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judge_tokens",
				Help:    "Distribution of total tokens per judgment.",
				Buckets: prometheus.ExponentialBuckets(16, 2, 12),
			},
			[]string{"model"},
		),
		budgetGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "judge_budget_state",
				Help: "Current budget usage and remaining headroom.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordLatency(
	operation string, duration time.Duration, labels map[string]string,
) {
	pm.latency.WithLabelValues(operation, labels["model"]).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface, routing the
// judge client's named counters onto dedicated metrics.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "judgments_total":
		pm.judgments.WithLabelValues(labels["status"], labels["model"]).Add(value)
	case "judge_cost_usd_total":
		pm.costUSD.WithLabelValues(labels["model"]).Add(value)
	case "judge_cache_hits_total":
		pm.events.WithLabelValues("cache_hit").Add(value)
	case "judge_cache_misses_total":
		pm.events.WithLabelValues("cache_miss").Add(value)
	case "judge_retries_total":
		pm.events.WithLabelValues("retry").Add(value)
	case "judge_rejected_total":
		pm.events.WithLabelValues("rejected_" + labels["reason"]).Add(value)
	case "budget_exceeded_total":
		pm.events.WithLabelValues("budget_exceeded_" + labels["limit_type"]).Add(value)
	default:
		pm.events.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.budgetGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "judge_score":
		pm.scores.WithLabelValues(labels["model"]).Observe(value)
	case "judge_tokens":
		pm.tokens.WithLabelValues(labels["model"]).Observe(value)
	default:
		pm.tokens.WithLabelValues(labels["model"]).Observe(value)
	}
}
