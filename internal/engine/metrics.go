package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xhrsim_runs_completed_total",
			Help: "Total number of completed simulation runs.",
		},
		[]string{"terminal_event", "profile"},
	)
)

func init() {
	prometheus.MustRegister(runsCompletedTotal)
}
