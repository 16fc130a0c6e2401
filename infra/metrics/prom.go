package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgenrique/ess-controller/core/events"
	coremetrics "github.com/mgenrique/ess-controller/core/metrics"
	"github.com/mgenrique/ess-controller/core/model"
)

// PromSink records scheduling activity in Prometheus metrics.
type PromSink struct {
	cycles     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	setpoint   prometheus.Gauge
	targetSoC  prometheus.Gauge
	currentSoC prometheus.Gauge
	totalCost  prometheus.Gauge
	finalSoC   prometheus.Gauge
	periods    prometheus.Gauge
}

// NewPromSink registers scheduling metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ess_recompute_cycles_total",
			Help: "Recompute cycles by outcome and reason",
		}, []string{"outcome", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ess_recompute_duration_seconds",
			Help:    "Duration of a recompute cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_grid_setpoint_watts",
			Help: "Proposed grid import limit",
		}),
		targetSoC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_target_soc_percent",
			Help: "Scheduled state of charge for the current hour",
		}),
		currentSoC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_battery_soc_percent",
			Help: "Battery state of charge when the setpoint was evaluated",
		}),
		totalCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_schedule_total_cost",
			Help: "Total cost of the published schedule",
		}),
		finalSoC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_schedule_final_soc_wh",
			Help: "State of charge at the end of the published schedule",
		}),
		periods: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ess_schedule_periods",
			Help: "Number of hourly periods in the published schedule",
		}),
	}
	var err error
	if s.cycles, err = register(reg, s.cycles); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	for _, g := range []*prometheus.Gauge{&s.setpoint, &s.targetSoC, &s.currentSoC, &s.totalCost, &s.finalSoC, &s.periods} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCycle counts the cycle and observes its duration.
func (s *PromSink) RecordCycle(ev events.CycleEvent) error {
	s.cycles.WithLabelValues(string(ev.Outcome), ev.Reason).Inc()
	if ev.Outcome != events.OutcomeSkipped {
		s.duration.WithLabelValues(string(ev.Outcome)).Observe(ev.Duration.Seconds())
	}
	return nil
}

// RecordSchedule exposes the economics of the published schedule.
func (s *PromSink) RecordSchedule(sch model.Schedule) error {
	s.totalCost.Set(sch.Economics.TotalCost)
	s.finalSoC.Set(sch.Economics.FinalSoCWh)
	s.periods.Set(float64(len(sch.Rows)))
	return nil
}

// RecordSetpoint exposes the setpoint and target SoC.
func (s *PromSink) RecordSetpoint(sp model.Setpoint) error {
	s.setpoint.Set(sp.Watts)
	s.targetSoC.Set(float64(sp.TargetSoCPercent))
	s.currentSoC.Set(sp.SoCPercent)
	return nil
}
