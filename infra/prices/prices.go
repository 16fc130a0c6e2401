// Package prices converts day-ahead price attribute maps into hourly series
// and keeps the latest maps received from the broker.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

// MinHours is the shortest series returned by Convert. Late in the evening
// only a few prices remain; the last one is repeated to reach it.
const MinHours = 6

var (
	// ErrNoPrices is returned when no price covers the current hour or later.
	ErrNoPrices = errors.New("no prices from current hour")

	keyPattern = regexp.MustCompile(`^price_(next_day_)?(\d{2})h(_next_day)?$`)
)

// Convert turns a map with keys price_00h..price_23h and
// price_next_day_00h..price_next_day_23h into a series anchored at local
// midnight of now. Each key sits at its day's midnight plus the hour as
// elapsed time, so DST days stay contiguous: on the short day a key that
// spills into the next day yields to the next day's own price, and the
// extra hour of the long day repeats the previous price. Hours before the
// current hour are dropped. Other keys are ignored.
func Convert(attrs map[string]float64, now time.Time) (model.Series, error) {
	y, m, d := now.Date()
	loc := now.Location()
	current := model.HourStart(now)
	midnights := [2]time.Time{
		time.Date(y, m, d, 0, 0, 0, 0, loc),
		time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}

	type keyed struct {
		model.Point
		day int
	}
	var points []keyed
	for key, v := range attrs {
		match := keyPattern.FindStringSubmatch(key)
		if match == nil {
			continue
		}
		hour, _ := strconv.Atoi(match[2])
		if hour > 23 {
			continue
		}
		day := 0
		if match[1] != "" || match[3] != "" {
			day = 1
		}
		at := midnights[day].Add(time.Duration(hour) * time.Hour)
		if at.Before(current) {
			continue
		}
		points = append(points, keyed{Point: model.Point{At: at, Value: v}, day: day})
	}
	if len(points) == 0 {
		return model.Series{}, ErrNoPrices
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].At.Equal(points[j].At) {
			return points[i].day > points[j].day
		}
		return points[i].At.Before(points[j].At)
	})

	out := make([]model.Point, 0, len(points))
	lastDay := -1
	for _, p := range points {
		if n := len(out); n > 0 {
			last := out[n-1]
			if !p.At.After(last.At) {
				continue
			}
			if p.day != lastDay && p.At.Sub(last.At) == 2*time.Hour {
				out = append(out, model.Point{At: last.At.Add(time.Hour), Value: last.Value})
			}
		}
		out = append(out, p.Point)
		lastDay = p.day
	}
	for len(out) < MinHours {
		last := out[len(out)-1]
		out = append(out, model.Point{At: last.At.Add(time.Hour), Value: last.Value})
	}
	s, err := model.NewHourlySeries(out)
	if err != nil {
		return model.Series{}, fmt.Errorf("convert prices: %w", err)
	}
	return s, nil
}

// DecodeAttributes extracts the numeric price keys of a JSON object. Values
// may be numbers or numeric strings.
func DecodeAttributes(payload []byte) (map[string]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode price attributes: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if !keyPattern.MatchString(k) {
			continue
		}
		switch x := v.(type) {
		case float64:
			out[k] = x
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("price %s: %w", k, err)
			}
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil, ErrNoPrices
	}
	return out, nil
}

// Store keeps the latest buy and sell price maps. It is safe for concurrent
// use and implements the orchestrator price source.
type Store struct {
	mu      sync.RWMutex
	buy     map[string]float64
	sell    map[string]float64
	updated time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store { return &Store{} }

// SetBuy replaces the buy price map.
func (s *Store) SetBuy(attrs map[string]float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buy = attrs
	s.updated = at
}

// SetSell replaces the sell price map.
func (s *Store) SetSell(attrs map[string]float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sell = attrs
	s.updated = at
}

// UpdatedAt returns the time of the last update.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Prices converts the stored maps for now. A missing sell map yields an
// empty sell series.
func (s *Store) Prices(_ context.Context, now time.Time) (model.Series, model.Series, error) {
	s.mu.RLock()
	buy, sell := s.buy, s.sell
	s.mu.RUnlock()
	if buy == nil {
		return model.Series{}, model.Series{}, fmt.Errorf("buy prices: %w", ErrNoPrices)
	}
	b, err := Convert(buy, now)
	if err != nil {
		return model.Series{}, model.Series{}, fmt.Errorf("buy prices: %w", err)
	}
	if sell == nil {
		return b, model.Series{}, nil
	}
	sl, err := Convert(sell, now)
	if err != nil {
		return model.Series{}, model.Series{}, fmt.Errorf("sell prices: %w", err)
	}
	return b, sl, nil
}
