package metrics

import (
	"context"

	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/logger"
	"github.com/mgenrique/ess-controller/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards events to the
// sink. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink MetricsSink, log logger.Logger) <-chan struct{} {
	if bus == nil || sink == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return bus.Handle(ctx, func(ev events.Event) {
		var err error
		switch e := ev.(type) {
		case events.CycleEvent:
			err = sink.RecordCycle(e)
		case events.ScheduleEvent:
			if r, ok := sink.(ScheduleRecorder); ok {
				err = r.RecordSchedule(e.Schedule)
			}
		case events.SetpointEvent:
			if r, ok := sink.(SetpointRecorder); ok {
				err = r.RecordSetpoint(e.Setpoint)
			}
		}
		if err != nil && log != nil {
			log.Warnf("record %s: %v", ev.EventName(), err)
		}
	})
}
