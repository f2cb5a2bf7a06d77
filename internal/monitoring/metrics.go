package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribune_decisions_total",
			Help: "Committee decisions by outcome",
		},
		[]string{"outcome"},
	)

	pipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribune_pipeline_failures_total",
			Help: "Pipeline runs that ended in the failed state, by reason",
		},
		[]string{"reason"},
	)

	stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribune_stage_latency_seconds",
			Help:    "Per-stage execution latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	adapterRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribune_adapter_retries_total",
			Help: "Adapter call retries by stage",
		},
		[]string{"stage"},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tribune_idempotency_hits_total",
			Help: "Submissions answered from the decision cache",
		},
	)
)

func init() {
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(pipelineFailuresTotal)
	prometheus.MustRegister(stageLatency)
	prometheus.MustRegister(adapterRetriesTotal)
	prometheus.MustRegister(cacheHitsTotal)
}

func RecordDecision(outcome string) {
	decisionsTotal.WithLabelValues(outcome).Inc()
}

func RecordFailure(reason string) {
	pipelineFailuresTotal.WithLabelValues(reason).Inc()
}

func ObserveStage(stage, outcome string, elapsed time.Duration) {
	stageLatency.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

func RecordRetry(stage string) {
	adapterRetriesTotal.WithLabelValues(stage).Inc()
}

func RecordCacheHit() {
	cacheHitsTotal.Inc()
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
