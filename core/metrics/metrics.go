package metrics

import (
	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/model"
)

// MetricsSink records recompute cycles for observability purposes.
type MetricsSink interface {
	RecordCycle(ev events.CycleEvent) error
}

// ScheduleRecorder records published schedules.
type ScheduleRecorder interface {
	RecordSchedule(s model.Schedule) error
}

// SetpointRecorder records setpoint changes.
type SetpointRecorder interface {
	RecordSetpoint(sp model.Setpoint) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(events.CycleEvent) error { return nil }
func (NopSink) RecordSchedule(model.Schedule) error { return nil }
func (NopSink) RecordSetpoint(model.Setpoint) error { return nil }
