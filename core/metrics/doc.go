// Package metrics defines the sinks that record scheduling activity.
// Sinks like PromSink and InfluxSink (infra/metrics) record recompute cycles,
// published schedules and setpoint changes, and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured. StartEventCollector feeds a sink from the
// event bus.
package metrics
