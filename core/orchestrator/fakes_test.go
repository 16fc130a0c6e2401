package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mgenrique/ess-controller/core/forecast"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/core/prediction"
)

var (
	base  = time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	clock = base.Add(5 * time.Minute)
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type fakePrices struct {
	mu        sync.Mutex
	buy, sell []float64
	err       error
}

func (f *fakePrices) Prices(context.Context, time.Time) (model.Series, model.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Series{}, model.Series{}, f.err
	}
	return model.SeriesFromValues(base, f.buy), model.SeriesFromValues(base, f.sell), nil
}

type fakeSolar struct {
	mu   sync.Mutex
	vals []float64
	err  error
}

func (f *fakeSolar) SolarForecast(context.Context, time.Time) (model.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.SeriesFromValues(base, f.vals), f.err
}

type fakeBattery struct {
	mu          sync.Mutex
	soc, min    float64
	socErr, err error
}

func (f *fakeBattery) StateOfCharge(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.soc, f.socErr
}

func (f *fakeBattery) MinimumSoC(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.min, f.err
}

func (f *fakeBattery) setSoC(v float64) {
	f.mu.Lock()
	f.soc = v
	f.mu.Unlock()
}

type fakeCorrector struct {
	corr forecast.Correction
	err  error
}

func (f fakeCorrector) Correction(context.Context, time.Time) (forecast.Correction, error) {
	return f.corr, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	schedules []model.Schedule
	setpoints []model.Setpoint
	block     chan struct{}
	err       error
	// onSchedule runs inside PublishSchedule, while the solve is in flight.
	onSchedule func()
}

func (f *fakePublisher) PublishSchedule(ctx context.Context, s model.Schedule) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.onSchedule != nil {
		f.onSchedule()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, s)
	return f.err
}

func (f *fakePublisher) PublishSetpoint(_ context.Context, sp model.Setpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setpoints = append(f.setpoints, sp)
	return f.err
}

func (f *fakePublisher) scheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schedules)
}

type fixture struct {
	prices  *fakePrices
	solar   *fakeSolar
	battery *fakeBattery
	demand  *prediction.MockForecaster
	pub     *fakePublisher
}

func newFixture() *fixture {
	return &fixture{
		prices: &fakePrices{
			buy:  []float64{0.05, 0.3, 0.3, 0.3, 0.3, 0.3},
			sell: repeat(0.02, 6),
		},
		solar:   &fakeSolar{vals: repeat(0, 6)},
		battery: &fakeBattery{soc: 50, min: 10},
		demand:  &prediction.MockForecaster{Series: model.SeriesFromValues(base, repeat(300, 6))},
		pub:     &fakePublisher{},
	}
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Prices:    f.prices,
		Solar:     f.solar,
		Battery:   f.battery,
		Demand:    f.demand,
		Publisher: f.pub,
		Now:       func() time.Time { return clock },
	}
}

func testConfig() Config {
	return Config{
		Installation: model.Installation{
			CapacityWh:          2560,
			MaxChargeWh:         1200,
			MaxDischargeWh:      1200,
			MaxImportWh:         1700,
			ChargeEfficiency:    0.9,
			DischargeEfficiency: 0.85,
		},
		SellAllowed: true,
		Location:    time.UTC,
	}
}

var errDown = errors.New("down")
