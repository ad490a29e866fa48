// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "healthrag"

var (
	IndexBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_builds_total",
		Help:      "Index build attempts by outcome.",
	}, []string{"outcome"})

	IndexBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_build_seconds",
		Help:      "Duration of index builds.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	IndexEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_entries",
		Help:      "Number of passages in the active index.",
	})

	Questions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_total",
		Help:      "Questions answered by outcome.",
	}, []string{"outcome"})

	QuestionSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "question_seconds",
		Help:      "End-to-end latency of answered questions.",
		Buckets:   prometheus.DefBuckets,
	})

	UpstreamRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_retries_total",
		Help:      "Retried upstream calls by operation.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(IndexBuilds, IndexBuildSeconds, IndexEntries, Questions, QuestionSeconds, UpstreamRetries)
}
