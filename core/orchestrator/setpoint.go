package orchestrator

import (
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

// setpointState tracks the proposed import limit between ticks. consumed is
// set once the full import cap was proposed for the current schedule and is
// cleared when a new schedule is stored.
type setpointState struct {
	current  model.Setpoint
	has      bool
	consumed bool
}

// next derives the setpoint for the current tick. It reports whether the
// proposal changed.
func (s *setpointState) next(sch model.Schedule, socPercent float64, now time.Time, minW, maxW float64) bool {
	target, ok := sch.TargetSoCPercent(now)
	if !ok {
		return false
	}
	watts := s.current.Watts
	switch {
	case socPercent >= float64(target):
		watts = minW
	case !s.consumed:
		watts = maxW
		s.consumed = true
	}
	prev := s.current
	s.current = model.Setpoint{
		Watts:            watts,
		TargetSoCPercent: target,
		SoCPercent:       socPercent,
		ScheduleID:       sch.ID,
		At:               now,
	}
	changed := !s.has || prev.Watts != watts || prev.TargetSoCPercent != target
	s.has = true
	return changed
}
