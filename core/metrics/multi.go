package metrics

import (
	"errors"

	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/model"
)

// MultiSink fans records out to several sinks. Every sink is called; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the cycle to all sinks.
func (m *MultiSink) RecordCycle(ev events.CycleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordSchedule forwards the schedule to sinks implementing ScheduleRecorder.
func (m *MultiSink) RecordSchedule(s model.Schedule) error {
	var errs []error
	for _, sink := range m.Sinks {
		if rec, ok := sink.(ScheduleRecorder); ok {
			if err := rec.RecordSchedule(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordSetpoint forwards the setpoint to sinks implementing SetpointRecorder.
func (m *MultiSink) RecordSetpoint(sp model.Setpoint) error {
	var errs []error
	for _, sink := range m.Sinks {
		if rec, ok := sink.(SetpointRecorder); ok {
			if err := rec.RecordSetpoint(sp); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
