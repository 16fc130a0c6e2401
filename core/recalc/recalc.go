// Package recalc decides whether a new schedule must be computed or the
// cached one reused.
package recalc

import (
	"math"
	"time"
)

// Defaults of the original integration.
const (
	DefaultDeviationPercent = 2.0
	DefaultInterval         = 20 * time.Minute
)

// Reason explains a Decision.
type Reason string

const (
	ReasonForced          Reason = "forced"
	ReasonSoCDeviation    Reason = "soc_deviation"
	ReasonNeverComputed   Reason = "never_computed"
	ReasonIntervalElapsed Reason = "interval_elapsed"
	ReasonCached          Reason = "cached"
)

// State is the bookkeeping of the last successful solve. The zero value
// means nothing has been computed yet.
type State struct {
	LastSoCWh      float64
	HasSoC         bool
	LastComputedAt time.Time
}

// Record stores the SoC and time used for a successful solve.
func (s *State) Record(socWh float64, at time.Time) {
	s.LastSoCWh = socWh
	s.HasSoC = true
	s.LastComputedAt = at
}

// Policy holds the recompute thresholds.
type Policy struct {
	CapacityWh       float64
	DeviationPercent float64
	Interval         time.Duration
}

// Decision is the result of Evaluate.
type Decision struct {
	Recompute bool
	Reason    Reason
	// DeviationPercent is the SoC change since the last solve in percent of
	// capacity. Zero when it could not be computed.
	DeviationPercent float64
}

// Evaluate applies the rules in order: forced, SoC deviation strictly above
// the threshold, never computed, interval elapsed, otherwise cached.
func (p Policy) Evaluate(st State, currentSoCWh float64, hasCurrent bool, now time.Time, force bool) Decision {
	threshold := p.DeviationPercent
	if threshold <= 0 {
		threshold = DefaultDeviationPercent
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var dev float64
	if st.HasSoC && hasCurrent && p.CapacityWh > 0 {
		dev = 100 * math.Abs(st.LastSoCWh-currentSoCWh) / p.CapacityWh
	}
	switch {
	case force:
		return Decision{Recompute: true, Reason: ReasonForced, DeviationPercent: dev}
	case dev > threshold:
		return Decision{Recompute: true, Reason: ReasonSoCDeviation, DeviationPercent: dev}
	case st.LastComputedAt.IsZero():
		return Decision{Recompute: true, Reason: ReasonNeverComputed, DeviationPercent: dev}
	case now.Sub(st.LastComputedAt) >= interval:
		return Decision{Recompute: true, Reason: ReasonIntervalElapsed, DeviationPercent: dev}
	default:
		return Decision{Reason: ReasonCached, DeviationPercent: dev}
	}
}
