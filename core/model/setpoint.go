package model

import "time"

// Setpoint is the proposed grid import limit for the current hour.
type Setpoint struct {
	Watts            float64   `json:"watts"`
	TargetSoCPercent int       `json:"target_soc_percent"`
	SoCPercent       float64   `json:"soc_percent"`
	ScheduleID       string    `json:"schedule_id"`
	At               time.Time `json:"at"`
}
