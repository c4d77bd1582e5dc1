package oscmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCmdFail = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostprep",
		Subsystem: "machine",
		Name:      "command_error_total",
		Help:      "Total number of external commands that failed.",
	}, []string{"command"})

	metricCmdOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostprep",
		Subsystem: "machine",
		Name:      "command_ops_total",
		Help:      "Total number of external commands run.",
	}, []string{"command"})
)
