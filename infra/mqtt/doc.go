// Package mqtt connects the controller to an MQTT broker with Eclipse Paho.
// It publishes schedules and setpoints on retained topics, announces them
// through Home Assistant discovery and receives day-ahead price maps.
package mqtt
