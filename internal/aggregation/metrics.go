package aggregation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paygrid"

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total aggregation runs by outcome",
		},
		[]string{"outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to deliver a report to a channel",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_kind"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one scheduled batch",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	aiDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "ai_degraded_total",
			Help:      "Reports that fell back to numeric-only after an AI failure",
		},
	)
)

func recordRunOutcome(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

func recordDispatchDuration(channelKind string, d time.Duration) {
	dispatchDuration.WithLabelValues(channelKind).Observe(d.Seconds())
}

func recordBatchDuration(d time.Duration) {
	batchDuration.Observe(d.Seconds())
}

func recordAiDegraded() {
	aiDegradedTotal.Inc()
}
