package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientHorizon is returned when fewer than two periods are available.
	ErrInsufficientHorizon = errors.New("insufficient horizon")
	// ErrUnalignedSeries is returned when input series do not start at the current hour.
	ErrUnalignedSeries = errors.New("series not aligned to current hour")
)

// Horizon holds the aligned hourly inputs of one optimisation run. Period 0
// is the hour containing the evaluation time and is partially elapsed.
type Horizon struct {
	Start          time.Time
	MinutesElapsed int
	Demand         []float64
	Solar          []float64
	BuyPrice       []float64
	SellPrice      []float64
}

// NewHorizon trims the series to the hour of now and aligns them on the
// shortest length.
func NewHorizon(now time.Time, demand, solar, buy, sell Series) (Horizon, error) {
	start := HourStart(now)
	named := []struct {
		name string
		s    Series
	}{{"demand", demand}, {"solar", solar}, {"buy", buy}, {"sell", sell}}

	n := -1
	trimmed := make([]Series, len(named))
	for i, in := range named {
		s := in.s.From(now)
		if s.Empty() {
			return Horizon{}, fmt.Errorf("%w: %s has no data from %s", ErrInsufficientHorizon, in.name, start.Format(time.RFC3339))
		}
		if !s.Start().Equal(start) {
			return Horizon{}, fmt.Errorf("%w: %s starts at %s", ErrUnalignedSeries, in.name, s.Start().Format(time.RFC3339))
		}
		trimmed[i] = s
		if n < 0 || s.Len() < n {
			n = s.Len()
		}
	}
	if n <= 1 {
		return Horizon{}, fmt.Errorf("%w: %d periods", ErrInsufficientHorizon, n)
	}
	return Horizon{
		Start:          start,
		MinutesElapsed: now.Minute(),
		Demand:         trimmed[0].Values()[:n],
		Solar:          trimmed[1].Values()[:n],
		BuyPrice:       trimmed[2].Values()[:n],
		SellPrice:      trimmed[3].Values()[:n],
	}, nil
}

// Len returns the number of periods.
func (h Horizon) Len() int { return len(h.Demand) }

// PeriodTime returns the wall-clock start of period t.
func (h Horizon) PeriodTime(t int) time.Time {
	return h.Start.Add(time.Duration(t) * time.Hour)
}

// FirstPeriodFraction is the share of period 0 still ahead.
func (h Horizon) FirstPeriodFraction() float64 {
	return float64(60-h.MinutesElapsed) / 60
}

// Clone returns a deep copy.
func (h Horizon) Clone() Horizon {
	c := h
	c.Demand = append([]float64(nil), h.Demand...)
	c.Solar = append([]float64(nil), h.Solar...)
	c.BuyPrice = append([]float64(nil), h.BuyPrice...)
	c.SellPrice = append([]float64(nil), h.SellPrice...)
	return c
}

// Validate checks that every slice is present and has the same length.
func (h Horizon) Validate() error {
	n := len(h.Demand)
	if n <= 1 {
		return fmt.Errorf("%w: %d periods", ErrInsufficientHorizon, n)
	}
	if len(h.Solar) != n || len(h.BuyPrice) != n || len(h.SellPrice) != n {
		return fmt.Errorf("%w: demand=%d solar=%d buy=%d sell=%d", ErrUnalignedSeries,
			n, len(h.Solar), len(h.BuyPrice), len(h.SellPrice))
	}
	if h.MinutesElapsed < 0 || h.MinutesElapsed > 59 {
		return fmt.Errorf("minutes elapsed out of range: %d", h.MinutesElapsed)
	}
	return nil
}
