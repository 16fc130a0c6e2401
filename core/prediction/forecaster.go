package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
	"gonum.org/v1/gonum/stat"
)

// DefaultHours is the length of the forecasts produced by this package.
const DefaultHours = 24

// ErrNoHistory is returned when no consumption history is available.
var ErrNoHistory = errors.New("no consumption history")

// DemandForecaster forecasts hourly consumption in Wh from the hour of now.
type DemandForecaster interface {
	Forecast(ctx context.Context, now time.Time) (model.Series, error)
}

// ConsumptionHistory provides measured hourly consumption in Wh.
type ConsumptionHistory interface {
	HourlyConsumption(ctx context.Context, from, to time.Time) (model.Series, error)
}

// ProfileForecaster averages the consumption of each hour of day over the
// last HistoryDays and repeats that profile.
type ProfileForecaster struct {
	History     ConsumptionHistory
	HistoryDays int
	Hours       int
}

// Forecast implements DemandForecaster.
func (p ProfileForecaster) Forecast(ctx context.Context, now time.Time) (model.Series, error) {
	if p.History == nil {
		return model.Series{}, ErrNoHistory
	}
	days := p.HistoryDays
	if days <= 0 {
		days = 7
	}
	hours := p.Hours
	if hours <= 0 {
		hours = DefaultHours
	}
	to := model.HourStart(now)
	hist, err := p.History.HourlyConsumption(ctx, to.AddDate(0, 0, -days), to)
	if err != nil {
		return model.Series{}, fmt.Errorf("consumption history: %w", err)
	}
	if hist.Empty() {
		return model.Series{}, ErrNoHistory
	}

	loc := now.Location()
	byHour := make([][]float64, 24)
	var all []float64
	for _, pt := range hist.Points() {
		h := pt.At.In(loc).Hour()
		byHour[h] = append(byHour[h], pt.Value)
		all = append(all, pt.Value)
	}
	fallback := stat.Mean(all, nil)
	profile := make([]float64, 24)
	for h, vals := range byHour {
		if len(vals) == 0 {
			profile[h] = fallback
			continue
		}
		profile[h] = stat.Mean(vals, nil)
	}
	return fromProfile(to, profile, hours), nil
}

// StaticForecaster repeats a fixed hour-of-day profile. A profile shorter
// than 24 entries is cycled.
type StaticForecaster struct {
	Profile []float64
	Hours   int
}

// Forecast implements DemandForecaster.
func (s StaticForecaster) Forecast(_ context.Context, now time.Time) (model.Series, error) {
	if len(s.Profile) == 0 {
		return model.Series{}, errors.New("static profile is empty")
	}
	hours := s.Hours
	if hours <= 0 {
		hours = DefaultHours
	}
	profile := make([]float64, 24)
	for h := range profile {
		profile[h] = s.Profile[h%len(s.Profile)]
	}
	return fromProfile(model.HourStart(now), profile, hours), nil
}

func fromProfile(start time.Time, profile []float64, hours int) model.Series {
	vals := make([]float64, hours)
	for i := range vals {
		at := start.Add(time.Duration(i) * time.Hour)
		vals[i] = profile[at.Hour()]
	}
	return model.SeriesFromValues(start, vals)
}

// MockForecaster returns a fixed series or error.
type MockForecaster struct {
	Series model.Series
	Err    error
	Calls  int
}

// Forecast implements DemandForecaster.
func (m *MockForecaster) Forecast(_ context.Context, _ time.Time) (model.Series, error) {
	m.Calls++
	return m.Series, m.Err
}
