// Package influx reads battery telemetry and energy history recorded by the
// home automation system in InfluxDB 2.x using Flux queries.
package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/mgenrique/ess-controller/core/forecast"
	"github.com/mgenrique/ess-controller/core/logger"
	"github.com/mgenrique/ess-controller/core/model"
)

// Defaults of the reader.
const (
	DefaultRefreshInterval = 15 * time.Minute
	DefaultEnergyScale     = 1000
	DefaultField           = "value"
	DefaultTimeout         = 10 * time.Second
)

// ErrNoData is returned when a query yields no usable value.
var ErrNoData = errors.New("influx: no data")

// Config selects the bucket and the entities holding each measurement.
type Config struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Field holding the value, "value" for Home Assistant.
	Field string `json:"field"`

	SoCEntity             string `json:"soc_entity"`
	MinSoCEntity          string `json:"min_soc_entity"`
	GridToLoadsEntity     string `json:"grid_to_loads_entity"`
	InverterToLoadsEntity string `json:"inverter_to_loads_entity"`
	SolarProductionEntity string `json:"solar_production_entity"`
	SolarForecastEntity   string `json:"solar_forecast_entity"`

	// EnergyScale converts stored energy to Wh, 1000 for kWh.
	EnergyScale     float64       `json:"energy_scale"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	Timeout         time.Duration `json:"timeout"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Field == "" {
		c.Field = DefaultField
	}
	if c.EnergyScale == 0 {
		c.EnergyScale = DefaultEnergyScale
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.URL == "" || c.Bucket == "" {
		return errors.New("influx url and bucket are required")
	}
	if c.SoCEntity == "" || c.MinSoCEntity == "" {
		return errors.New("influx soc_entity and min_soc_entity are required")
	}
	return nil
}

type cachedSeries struct {
	at     time.Time
	series model.Series
}

// Reader implements the battery source and the consumption and solar
// history interfaces.
type Reader struct {
	cfg      Config
	client   influxdb2.Client
	queryAPI api.QueryAPI
	log      logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSeries
}

// NewReader creates a Reader for cfg.
func NewReader(cfg Config, log logger.Logger) *Reader {
	cfg.SetDefaults()
	client := influxdb2.NewClientWithOptions(strings.TrimSuffix(cfg.URL, "/"), cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &Reader{
		cfg:      cfg,
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		log:      log,
		now:      time.Now,
		cache:    make(map[string]cachedSeries),
	}
}

// Close releases the client.
func (r *Reader) Close() { r.client.Close() }

// StateOfCharge returns the latest battery SoC in percent.
func (r *Reader) StateOfCharge(ctx context.Context) (float64, error) {
	return r.last(ctx, r.cfg.SoCEntity)
}

// MinimumSoC returns the latest inverter minimum SoC in percent.
func (r *Reader) MinimumSoC(ctx context.Context) (float64, error) {
	return r.last(ctx, r.cfg.MinSoCEntity)
}

// HourlyConsumption returns the energy delivered to the loads per hour in
// Wh, the sum of the grid and inverter counters.
func (r *Reader) HourlyConsumption(ctx context.Context, from, to time.Time) (model.Series, error) {
	return r.cached(ctx, "consumption", from, to, func(ctx context.Context) (model.Series, error) {
		grid, err := r.counterDeltas(ctx, r.cfg.GridToLoadsEntity, from, to)
		if err != nil {
			return model.Series{}, err
		}
		inv, err := r.counterDeltas(ctx, r.cfg.InverterToLoadsEntity, from, to)
		if err != nil {
			return model.Series{}, err
		}
		return forecast.Sum(grid, inv), nil
	})
}

// SolarProduction returns measured production per hour in Wh.
func (r *Reader) SolarProduction(ctx context.Context, from, to time.Time) (model.Series, error) {
	return r.cached(ctx, "solar", from, to, func(ctx context.Context) (model.Series, error) {
		return r.counterDeltas(ctx, r.cfg.SolarProductionEntity, from, to)
	})
}

// SolarForecastHistory returns the forecast recorded for each past hour in Wh.
func (r *Reader) SolarForecastHistory(ctx context.Context, from, to time.Time) (model.Series, error) {
	return r.cached(ctx, "solar_forecast", from, to, func(ctx context.Context) (model.Series, error) {
		s, err := r.hourly(ctx, r.cfg.SolarForecastEntity, "max", from, to)
		if err != nil {
			return model.Series{}, err
		}
		return s.Scale(func(time.Time) float64 { return r.cfg.EnergyScale }), nil
	})
}

// cached reuses a series for the same kind and hour range within the
// refresh interval.
func (r *Reader) cached(ctx context.Context, kind string, from, to time.Time, load func(context.Context) (model.Series, error)) (model.Series, error) {
	key := fmt.Sprintf("%s|%d|%d", kind, model.HourStart(from).Unix(), model.HourStart(to).Unix())
	now := r.now()
	r.mu.Lock()
	c, ok := r.cache[key]
	r.mu.Unlock()
	if ok && now.Sub(c.at) < r.cfg.RefreshInterval {
		return c.series, nil
	}
	s, err := load(ctx)
	if err != nil {
		return model.Series{}, err
	}
	r.mu.Lock()
	for k := range r.cache {
		if strings.HasPrefix(k, kind+"|") && k != key {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cachedSeries{at: now, series: s}
	r.mu.Unlock()
	return s, nil
}

func (r *Reader) counterDeltas(ctx context.Context, entity string, from, to time.Time) (model.Series, error) {
	// one extra hour so the first hour of the range has a predecessor
	counter, err := r.hourly(ctx, entity, "last", from.Add(-time.Hour), to)
	if err != nil {
		return model.Series{}, err
	}
	return forecast.HourlyDeltas(counter).Scale(func(time.Time) float64 { return r.cfg.EnergyScale }), nil
}

func (r *Reader) filter(entity string) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %%s, stop: %%s)
  |> filter(fn: (r) => r.entity_id == %q and r._field == %q)`, r.cfg.Bucket, entity, r.cfg.Field)
}

func (r *Reader) last(ctx context.Context, entity string) (float64, error) {
	if entity == "" {
		return 0, fmt.Errorf("%w: entity not configured", ErrNoData)
	}
	q := fmt.Sprintf(r.filter(entity), "-7d", "now()") + "\n  |> last()"
	res, err := r.queryAPI.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", entity, err)
	}
	defer func() { _ = res.Close() }()
	var (
		v     float64
		found bool
	)
	for res.Next() {
		if f, ok := toFloat(res.Record().Value()); ok {
			v, found = f, true
		}
	}
	if res.Err() != nil {
		return 0, fmt.Errorf("query %s: %w", entity, res.Err())
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoData, entity)
	}
	return v, nil
}

// hourly aggregates entity per hour with fn, labelling each window by its
// start. Missing hours repeat the previous value.
func (r *Reader) hourly(ctx context.Context, entity, fn string, from, to time.Time) (model.Series, error) {
	if entity == "" {
		return model.Series{}, fmt.Errorf("%w: entity not configured", ErrNoData)
	}
	q := fmt.Sprintf(r.filter(entity), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)) +
		fmt.Sprintf("\n  |> aggregateWindow(every: 1h, fn: %s, createEmpty: true, timeSrc: \"_start\")\n  |> fill(usePrevious: true)", fn)
	res, err := r.queryAPI.Query(ctx, q)
	if err != nil {
		return model.Series{}, fmt.Errorf("query %s: %w", entity, err)
	}
	defer func() { _ = res.Close() }()
	var points []model.Point
	for res.Next() {
		rec := res.Record()
		f, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		points = append(points, model.Point{At: rec.Time().In(from.Location()), Value: f})
	}
	if res.Err() != nil {
		return model.Series{}, fmt.Errorf("query %s: %w", entity, res.Err())
	}
	if len(points) == 0 {
		return model.Series{}, fmt.Errorf("%w: %s", ErrNoData, entity)
	}
	return model.NewHourlySeries(forwardFill(points))
}

// forwardFill inserts the previous value for every missing hour.
func forwardFill(points []model.Point) []model.Point {
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	out := make([]model.Point, 0, len(points))
	for i, p := range points {
		p.At = model.HourStart(p.At)
		if i > 0 {
			prev := out[len(out)-1]
			if !p.At.After(prev.At) {
				continue
			}
			for at := prev.At.Add(time.Hour); at.Before(p.At); at = at.Add(time.Hour) {
				out = append(out, model.Point{At: at, Value: prev.Value})
			}
		}
		out = append(out, p)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
