package optimizer

import "github.com/prometheus/client_golang/prometheus"

var (
	solveDuration *prometheus.HistogramVec
	solvesTotal   *prometheus.CounterVec
	lpVariables   prometheus.Gauge
	lpConstraints prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Gauge) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ess_lp_solve_duration_seconds",
			Help:    "Time spent building and solving the schedule LP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ess_lp_solves_total",
			Help: "Number of LP solves by outcome",
		},
		[]string{"status"},
	)
	vars := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ess_lp_variables",
		Help: "Number of variables in the last built LP",
	})
	rows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ess_lp_constraints",
		Help: "Number of constraints in the last built LP",
	})
	return dur, total, vars, rows
}

func init() {
	solveDuration, solvesTotal, lpVariables, lpConstraints = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimiser metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, solvesTotal, lpVariables, lpConstraints)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, solvesTotal, lpVariables, lpConstraints = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
