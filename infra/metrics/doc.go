// Package metrics provides the Prometheus and InfluxDB implementations of the
// core metrics sinks and the HTTP endpoint serving Prometheus metrics.
package metrics
