package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)

func TestNewCorrection(t *testing.T) {
	measured := make([]float64, 48)
	pred := make([]float64, 48)
	for i := range measured {
		switch i % 24 {
		case 10:
			measured[i], pred[i] = 300, 200
		case 12:
			measured[i], pred[i] = 900, 300
		case 14:
			measured[i], pred[i] = 50, 0
		}
	}
	c := NewCorrection(model.SeriesFromValues(day, measured), model.SeriesFromValues(day, pred), time.UTC)
	assert.InDelta(t, 1.5, c.Factors[10], 1e-12)
	assert.Equal(t, MaxFactor, c.Factors[12])
	assert.Equal(t, 1.0, c.Factors[14])
	// 0/0 is treated as a zero forecast
	assert.Equal(t, 1.0, c.Factors[3])

	s := c.Apply(model.SeriesFromValues(day.Add(10*time.Hour), []float64{100, 100, 100}))
	assert.Equal(t, []float64{150, 100, 200}, s.Values())
}

func TestNewCorrectionMissingHours(t *testing.T) {
	measured := model.SeriesFromValues(day.Add(8*time.Hour), []float64{100})
	pred := model.SeriesFromValues(day.Add(9*time.Hour), []float64{100})
	c := NewCorrection(measured, pred, time.UTC)
	for h, f := range c.Factors {
		if f != 1 {
			t.Fatalf("hour %d: expected 1 got %v", h, f)
		}
	}
}

func TestHourlyDeltas(t *testing.T) {
	counter := model.SeriesFromValues(day, []float64{10, 10.5, 12, 0.3, 1})
	d := HourlyDeltas(counter)
	require.Equal(t, 4, d.Len())
	assert.True(t, d.Start().Equal(day.Add(time.Hour)))
	got := d.Values()
	want := []float64{0.5, 1.5, 0, 0.7}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
	assert.True(t, HourlyDeltas(model.SeriesFromValues(day, []float64{1})).Empty())
}

func TestSum(t *testing.T) {
	a := model.SeriesFromValues(day, []float64{1, 2, 3})
	b := model.SeriesFromValues(day.Add(time.Hour), []float64{10, 20, 30})
	s := Sum(a, b)
	assert.Equal(t, []float64{12, 23}, s.Values())
	assert.True(t, s.Start().Equal(day.Add(time.Hour)))
	assert.True(t, Sum(a, model.Series{}).Empty())
}

func TestZeroFill(t *testing.T) {
	s := ZeroFill(day, day.Add(3*time.Hour))
	assert.Equal(t, []float64{0, 0, 0}, s.Values())
}

type fakeSolarHistory struct {
	calls int
}

func (f *fakeSolarHistory) SolarProduction(_ context.Context, from, to time.Time) (model.Series, error) {
	f.calls++
	vals := make([]float64, int(to.Sub(from)/time.Hour))
	for i := range vals {
		if i%24 == 12 {
			vals[i] = 120
		}
	}
	return model.SeriesFromValues(from, vals), nil
}

func (f *fakeSolarHistory) SolarForecastHistory(_ context.Context, from, to time.Time) (model.Series, error) {
	vals := make([]float64, int(to.Sub(from)/time.Hour))
	for i := range vals {
		if i%24 == 12 {
			vals[i] = 100
		}
	}
	return model.SeriesFromValues(from, vals), nil
}

func TestHistoryCorrectorCachesPerDay(t *testing.T) {
	src := &fakeSolarHistory{}
	hc := &HistoryCorrector{Source: src, Days: 2}
	now := day.Add(30 * time.Hour)

	c, err := hc.Correction(context.Background(), now)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, c.Factors[12], 1e-12)

	_, err = hc.Correction(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = hc.Correction(context.Background(), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
