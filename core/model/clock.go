package model

import "time"

// HourStart returns the start of the local wall-clock hour containing t.
// Unlike t.Truncate(time.Hour) it stays on the hour in zones whose offset is
// not a whole number of hours.
func HourStart(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}
