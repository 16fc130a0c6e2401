package events

import (
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

// Event is implemented by every event published on the bus.
type Event interface {
	EventName() string
}

// Outcome is the tri-state result of a recompute cycle.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// ScheduleEvent is published after a schedule replaced the previous one.
type ScheduleEvent struct {
	Schedule model.Schedule
	Reason   string
}

func (ScheduleEvent) EventName() string { return "schedule" }

// SetpointEvent is published when the proposed setpoint changes.
type SetpointEvent struct {
	Setpoint model.Setpoint
}

func (SetpointEvent) EventName() string { return "setpoint" }

// CycleEvent describes one recompute cycle.
type CycleEvent struct {
	Outcome  Outcome
	Phase    string
	Reason   string
	Status   string
	Err      error
	Duration time.Duration
	At       time.Time
}

func (CycleEvent) EventName() string { return "cycle" }
