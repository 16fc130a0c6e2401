// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - ScheduleEvent: a new schedule was published
//   - SetpointEvent: the proposed grid import limit changed
//   - CycleEvent: a recompute cycle finished, failed or was skipped
package events
