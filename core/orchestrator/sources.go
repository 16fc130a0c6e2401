package orchestrator

import (
	"context"
	"time"

	"github.com/mgenrique/ess-controller/core/forecast"
	"github.com/mgenrique/ess-controller/core/model"
)

// PriceSource provides hourly buy and sell prices per kWh.
type PriceSource interface {
	Prices(ctx context.Context, now time.Time) (buy, sell model.Series, err error)
}

// SolarSource provides the hourly solar production forecast in Wh.
type SolarSource interface {
	SolarForecast(ctx context.Context, now time.Time) (model.Series, error)
}

// BatterySource reports the battery state in percent of capacity.
type BatterySource interface {
	StateOfCharge(ctx context.Context) (float64, error)
	MinimumSoC(ctx context.Context) (float64, error)
}

// SolarCorrector returns hour-of-day factors applied to the solar forecast.
type SolarCorrector interface {
	Correction(ctx context.Context, now time.Time) (forecast.Correction, error)
}

// Publisher delivers results to the outside world.
type Publisher interface {
	PublishSchedule(ctx context.Context, s model.Schedule) error
	PublishSetpoint(ctx context.Context, sp model.Setpoint) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSchedule(context.Context, model.Schedule) error { return nil }
func (nopPublisher) PublishSetpoint(context.Context, model.Setpoint) error { return nil }
