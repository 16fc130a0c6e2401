// Package forecast adjusts solar forecasts against measured production and
// derives hourly energy from cumulative counters.
package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
	"gonum.org/v1/gonum/stat"
)

// MaxFactor caps a correction factor.
const MaxFactor = 2.0

// Correction holds one multiplicative factor per hour of day.
type Correction struct {
	Factors [24]float64
	Loc     *time.Location
}

// Identity returns a correction that leaves values unchanged.
func Identity(loc *time.Location) Correction {
	c := Correction{Loc: loc}
	for h := range c.Factors {
		c.Factors[h] = 1
	}
	return c
}

// NewCorrection compares the hour-of-day means of measured and forecast
// production. Hours missing from either series or with a zero forecast mean
// keep a factor of 1.
func NewCorrection(measured, predicted model.Series, loc *time.Location) Correction {
	if loc == nil {
		loc = time.Local
	}
	measuredByHour := groupByHour(measured, loc)
	predByHour := groupByHour(predicted, loc)
	c := Identity(loc)
	for h := 0; h < 24; h++ {
		if len(measuredByHour[h]) == 0 || len(predByHour[h]) == 0 {
			continue
		}
		fm := stat.Mean(predByHour[h], nil)
		if fm == 0 {
			continue
		}
		f := stat.Mean(measuredByHour[h], nil) / fm
		if f > MaxFactor {
			f = MaxFactor
		}
		c.Factors[h] = f
	}
	return c
}

func groupByHour(s model.Series, loc *time.Location) [24][]float64 {
	var out [24][]float64
	for _, p := range s.Points() {
		h := p.At.In(loc).Hour()
		out[h] = append(out[h], p.Value)
	}
	return out
}

// Factor returns the factor for the hour containing at.
func (c Correction) Factor(at time.Time) float64 {
	loc := c.Loc
	if loc == nil {
		loc = time.Local
	}
	return c.Factors[at.In(loc).Hour()]
}

// Apply scales every point of s by its hour factor.
func (c Correction) Apply(s model.Series) model.Series {
	return s.Scale(c.Factor)
}

// SolarHistory provides measured production and past forecasts in Wh.
type SolarHistory interface {
	SolarProduction(ctx context.Context, from, to time.Time) (model.Series, error)
	SolarForecastHistory(ctx context.Context, from, to time.Time) (model.Series, error)
}

// HistoryCorrector derives a Correction from the previous Days full days and
// recomputes it at most once per calendar day.
type HistoryCorrector struct {
	Source SolarHistory
	Days   int

	mu       sync.Mutex
	computed time.Time
	cached   Correction
}

// Correction returns the cached factors, refreshing them on a new day.
func (c *HistoryCorrector) Correction(ctx context.Context, now time.Time) (Correction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, m, d := now.Date()
	if !c.computed.IsZero() {
		cy, cm, cd := c.computed.Date()
		if cy == y && cm == m && cd == d {
			return c.cached, nil
		}
	}
	days := c.Days
	if days <= 0 {
		days = 7
	}
	to := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	from := to.AddDate(0, 0, -days)
	measured, err := c.Source.SolarProduction(ctx, from, to)
	if err != nil {
		return Correction{}, fmt.Errorf("solar production history: %w", err)
	}
	pred, err := c.Source.SolarForecastHistory(ctx, from, to)
	if err != nil {
		return Correction{}, fmt.Errorf("solar forecast history: %w", err)
	}
	c.cached = NewCorrection(measured, pred, now.Location())
	c.computed = now
	return c.cached, nil
}
