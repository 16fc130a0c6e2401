// Package infra groups the adapters to the outside world: the InfluxDB
// reader, the Forecast.Solar client, the MQTT publisher, the SQLite cache
// and the metrics and monitoring backends. They implement interfaces
// declared by the core packages.
package infra
