// Package forecastsolar fetches hourly solar production estimates from the
// Forecast.Solar public API and caches them to respect its rate limit.
package forecastsolar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mgenrique/ess-controller/core/logger"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/infra/kvstore"
)

// CacheKey identifies the cached payload in the store.
const CacheKey = "forecast_solar"

const (
	DefaultBaseURL         = "https://api.forecast.solar/estimate"
	DefaultRefreshInterval = time.Hour
	DefaultTimeout         = 10 * time.Second
)

// timeLayout of the watt_hours_period keys, in the local time of the site.
const timeLayout = "2006-01-02 15:04:05"

var (
	// ErrNoForecast is returned when neither the API nor the cache has data.
	ErrNoForecast = errors.New("no solar forecast available")
	// ErrRateLimited is returned on HTTP 429 without cached data.
	ErrRateLimited = errors.New("forecast.solar rate limited")
)

// Cache persists the last payload and the time of the last request.
type Cache interface {
	Get(ctx context.Context, key string) (kvstore.Entry, bool, error)
	Put(ctx context.Context, key string, payload []byte, stamp time.Time) error
	Touch(ctx context.Context, key string, stamp time.Time) error
}

// Config describes the plant and the request cadence.
type Config struct {
	BaseURL         string        `json:"base_url"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Declination     float64       `json:"declination"`
	Azimuth         float64       `json:"azimuth"`
	PeakPowerKW     float64       `json:"peak_power_kw"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	Timeout         time.Duration `json:"timeout"`
}

// URL returns the estimate endpoint for the plant.
func (c Config) URL() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s", c.BaseURL, f(c.Latitude), f(c.Longitude), f(c.Declination), f(c.Azimuth), f(c.PeakPowerKW))
}

type response struct {
	Result struct {
		WattHoursPeriod map[string]float64 `json:"watt_hours_period"`
	} `json:"result"`
}

// Client implements the orchestrator solar source.
type Client struct {
	cfg   Config
	http  *http.Client
	cache Cache
	log   logger.Logger
	loc   *time.Location

	mu sync.Mutex
}

// New returns a Client. loc is the time zone of the returned timestamps;
// nil means time.Local.
func New(cfg Config, cache Cache, log logger.Logger, loc *time.Location) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, cache: cache, log: log, loc: loc}
}

// SolarForecast returns the hourly estimate from the current hour.
func (c *Client) SolarForecast(ctx context.Context, now time.Time) (model.Series, error) {
	data, _, err := c.Fetch(ctx, now)
	if err != nil {
		return model.Series{}, err
	}
	return ToSeries(data, now.In(c.loc), c.loc)
}

// Fetch returns the raw watt_hours_period map and the time it was obtained.
// The API is queried at most once per refresh interval.
func (c *Client) Fetch(ctx context.Context, now time.Time) (map[string]float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, stamp, err := c.load(ctx)
	if err != nil {
		c.log.Warnf("forecast cache: %v", err)
	}
	if !stamp.IsZero() && now.Sub(stamp) <= c.cfg.RefreshInterval {
		c.log.Debugf("skipping forecast.solar request, last at %s", stamp.Format(time.RFC3339))
		return orNoForecast(cached, stamp, nil)
	}

	data, status, err := c.request(ctx)
	switch {
	case err == nil:
		payload, _ := json.Marshal(data)
		if err := c.cache.Put(ctx, CacheKey, payload, now); err != nil {
			c.log.Warnf("store forecast: %v", err)
		}
		return data, now, nil
	case status == http.StatusTooManyRequests:
		c.log.Warnf("too many requests to forecast.solar, waiting %s", c.cfg.RefreshInterval)
		if err := c.cache.Touch(ctx, CacheKey, now); err != nil {
			c.log.Warnf("stamp forecast cache: %v", err)
		}
		return orNoForecast(cached, stamp, ErrRateLimited)
	default:
		c.log.Warnf("forecast.solar request: %v", err)
		return orNoForecast(cached, stamp, err)
	}
}

func orNoForecast(data map[string]float64, stamp time.Time, cause error) (map[string]float64, time.Time, error) {
	if len(data) > 0 {
		return data, stamp, nil
	}
	if cause != nil {
		return nil, stamp, fmt.Errorf("%w: %w", ErrNoForecast, cause)
	}
	return nil, stamp, ErrNoForecast
}

func (c *Client) load(ctx context.Context) (map[string]float64, time.Time, error) {
	if c.cache == nil {
		return nil, time.Time{}, nil
	}
	e, ok, err := c.cache.Get(ctx, CacheKey)
	if err != nil || !ok {
		return nil, time.Time{}, err
	}
	var data map[string]float64
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &data); err != nil {
			return nil, e.Stamp, fmt.Errorf("decode cached forecast: %w", err)
		}
	}
	return data, e.Stamp, nil
}

func (c *Client) request(ctx context.Context) (map[string]float64, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("forecast.solar status %d", resp.StatusCode)
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode forecast.solar response: %w", err)
	}
	if len(r.Result.WattHoursPeriod) == 0 {
		return nil, resp.StatusCode, errors.New("forecast.solar response without watt_hours_period")
	}
	return r.Result.WattHoursPeriod, resp.StatusCode, nil
}

// ToSeries sums the entries of each hour and returns a contiguous series
// from the hour of now up to the last reported hour. Hours without entries
// are 0.
func ToSeries(data map[string]float64, now time.Time, loc *time.Location) (model.Series, error) {
	if loc == nil {
		loc = time.Local
	}
	sums := make(map[time.Time]float64, len(data))
	var last time.Time
	for k, v := range data {
		at, err := time.ParseInLocation(timeLayout, k, loc)
		if err != nil {
			return model.Series{}, fmt.Errorf("forecast timestamp %q: %w", k, err)
		}
		h := model.HourStart(at)
		sums[h] += v
		if h.After(last) {
			last = h
		}
	}
	start := model.HourStart(now)
	if last.Before(start) {
		return model.Series{}, ErrNoForecast
	}
	n := int(last.Sub(start)/time.Hour) + 1
	vals := make([]float64, n)
	for h, v := range sums {
		if h.Before(start) {
			continue
		}
		vals[int(h.Sub(start)/time.Hour)] = v
	}
	return model.SeriesFromValues(start, vals), nil
}
