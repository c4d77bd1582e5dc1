package apply

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hostprep",
		Subsystem: "step",
		Name:      "duration_seconds",
		Help:      "Time it took to apply a plan step.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"kind"})

	metricStepFail = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostprep",
		Subsystem: "step",
		Name:      "error_total",
		Help:      "Total number of plan steps that failed.",
	}, []string{"kind"})
)
