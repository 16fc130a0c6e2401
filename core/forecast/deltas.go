package forecast

import (
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

// HourlyDeltas turns a cumulative counter into per-hour increments. The
// first point has no predecessor and is dropped. Negative steps, caused by
// counter resets, become 0.
func HourlyDeltas(counter model.Series) model.Series {
	pts := counter.Points()
	if len(pts) < 2 {
		return model.Series{}
	}
	vals := make([]float64, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		d := pts[i].Value - pts[i-1].Value
		if d < 0 {
			d = 0
		}
		vals[i-1] = d
	}
	return model.SeriesFromValues(pts[1].At, vals)
}

// Sum adds two series over the hours they share. Hours outside the common
// range are dropped.
func Sum(a, b model.Series) model.Series {
	if a.Empty() || b.Empty() {
		return model.Series{}
	}
	start := a.Start()
	if b.Start().After(start) {
		start = b.Start()
	}
	av, bv := a.From(start).Values(), b.From(start).Values()
	n := len(av)
	if len(bv) < n {
		n = len(bv)
	}
	if n == 0 {
		return model.Series{}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = av[i] + bv[i]
	}
	return model.SeriesFromValues(start, out)
}

// ZeroFill returns hourly zeros over [from, to).
func ZeroFill(from, to time.Time) model.Series {
	from = model.HourStart(from)
	n := int(to.Sub(from) / time.Hour)
	if n <= 0 {
		return model.Series{}
	}
	return model.SeriesFromValues(from, make([]float64, n))
}
