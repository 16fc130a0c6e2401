package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgenrique/ess-controller/config"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/core/optimizer"
)

// scenario is a self-contained solve input. Hourly values start at the hour
// containing At.
type scenario struct {
	At                time.Time          `yaml:"at"`
	Installation      model.Installation `yaml:"installation"`
	InitialSoCPercent float64            `yaml:"initial_soc_percent"`
	MinSoCPercent     float64            `yaml:"min_soc_percent"`
	SellAllowed       bool               `yaml:"sell_allowed"`
	Buy               []float64          `yaml:"buy"`
	Sell              []float64          `yaml:"sell"`
	Demand            []float64          `yaml:"demand"`
	Solar             []float64          `yaml:"solar"`
}

func decodeScenario(r io.Reader) (scenario, error) {
	var sc scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	config.SetInstallationDefaults(&sc.Installation)
	if len(sc.Buy) == 0 {
		return scenario{}, errors.New("scenario: buy prices are required")
	}
	return sc, nil
}

// request converts the scenario into an optimizer request at now. A zero
// now uses the scenario time.
func (sc scenario) request(now time.Time) (optimizer.Request, error) {
	if now.IsZero() {
		now = sc.At
	}
	if now.IsZero() {
		return optimizer.Request{}, errors.New("scenario: no time given, set at or --at")
	}
	start := model.HourStart(now)
	sell := sc.Sell
	if len(sell) == 0 {
		sell = make([]float64, len(sc.Buy))
	}
	solar := sc.Solar
	if len(solar) == 0 {
		solar = make([]float64, len(sc.Buy))
	}
	h, err := model.NewHorizon(now,
		model.SeriesFromValues(start, sc.Demand),
		model.SeriesFromValues(start, solar),
		model.SeriesFromValues(start, sc.Buy),
		model.SeriesFromValues(start, sell),
	)
	if err != nil {
		return optimizer.Request{}, err
	}
	return optimizer.Request{
		Horizon:      h,
		Installation: sc.Installation,
		InitialSoCWh: sc.Installation.PercentToWh(sc.InitialSoCPercent),
		MinSoCWh:     sc.Installation.PercentToWh(sc.MinSoCPercent),
		SellAllowed:  sc.SellAllowed,
	}, nil
}
