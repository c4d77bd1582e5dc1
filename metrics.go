package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hostprep"

var (
	metricHostInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "info",
		Help:      "Info on the host",
	}, []string{"machine", "family", "version"})

	metricHostState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "state",
		Help:      "Current state of the host",
	}, []string{"machine"})

	metricHostTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "state_timestamp_seconds",
		Help:      "When the host's state last changed",
	}, []string{"machine"})

	metricHostApply = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "apply_total",
		Help:      "Total number of times the plan was applied",
	}, []string{"machine"})
)
