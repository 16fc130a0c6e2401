package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrEmptySeries is returned when a series has no points.
	ErrEmptySeries = errors.New("empty series")
	// ErrSeriesGap is returned when hourly points are duplicated or missing.
	ErrSeriesGap = errors.New("series is not contiguous hourly")
)

// Point is one hourly value of a Series.
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Series is an ordered, gap-free hourly time series. The zero value is an
// empty series.
type Series struct {
	points []Point
}

// NewHourlySeries builds a Series from unordered points. Timestamps are
// truncated to the hour and must cover a contiguous range without duplicates.
func NewHourlySeries(points []Point) (Series, error) {
	if len(points) == 0 {
		return Series{}, ErrEmptySeries
	}
	pts := make([]Point, len(points))
	for i, p := range points {
		pts[i] = Point{At: HourStart(p.At), Value: p.Value}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].At.Before(pts[j].At) })
	for i := 1; i < len(pts); i++ {
		if d := pts[i].At.Sub(pts[i-1].At); d != time.Hour {
			return Series{}, fmt.Errorf("%w: %s after %s", ErrSeriesGap,
				pts[i].At.Format(time.RFC3339), pts[i-1].At.Format(time.RFC3339))
		}
	}
	return Series{points: pts}, nil
}

// SeriesFromValues builds a Series of consecutive hours starting at start.
func SeriesFromValues(start time.Time, values []float64) Series {
	start = HourStart(start)
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{At: start.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return Series{points: pts}
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.points) }

// Empty reports whether the series has no points.
func (s Series) Empty() bool { return len(s.points) == 0 }

// Start returns the timestamp of the first point.
func (s Series) Start() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[0].At
}

// Points returns a copy of the points.
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns a copy of the values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// From drops every point before the hour containing t.
func (s Series) From(t time.Time) Series {
	h := HourStart(t)
	for i, p := range s.points {
		if !p.At.Before(h) {
			return Series{points: s.points[i:]}
		}
	}
	return Series{}
}

// Scale multiplies each value by the factor returned for its timestamp.
func (s Series) Scale(factor func(time.Time) float64) Series {
	out := make([]Point, len(s.points))
	for i, p := range s.points {
		out[i] = Point{At: p.At, Value: p.Value * factor(p.At)}
	}
	return Series{points: out}
}
