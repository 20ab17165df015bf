package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics emitted by the transport and
// reconciler layers. Pass to components that need to record them; the
// engine treats a nil *Metrics as "record nothing". In tests, use
// NewMetrics with a fresh registry (e.g. prometheus.NewRegistry()) or a
// nil one to avoid duplicate registration panics across test cases.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	RateLimitSleepsTotal prometheus.Counter
	RefreshTotal         *prometheus.CounterVec
	PushItemsTotal       *prometheus.CounterVec
	LedgerDirtyRulesets  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rulectl",
				Name:      "requests_total",
				Help:      "Total number of requests issued to the remote platform",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rulectl",
				Name:      "request_duration_seconds",
				Help:      "Remote request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RateLimitSleepsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rulectl",
				Name:      "rate_limit_sleeps_total",
				Help:      "Total number of times the transport slept for a rate-limit reset",
			},
		),
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rulectl",
				Name:      "refresh_total",
				Help:      "Total refresh invocations by outcome",
			},
			[]string{"outcome"}, // outcome=ok/error/cancelled
		),
		PushItemsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rulectl",
				Name:      "push_items_total",
				Help:      "Total ledger items applied by push, by kind",
			},
			[]string{"kind"}, // kind=ruleset/rule/tags/delete
		),
		LedgerDirtyRulesets: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rulectl",
				Name:      "ledger_dirty_rulesets",
				Help:      "Number of ruleset entries currently carrying pending mutations",
			},
		),
	}
}
