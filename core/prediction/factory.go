package prediction

import (
	"github.com/mgenrique/ess-controller/core/factory"
)

// Builder creates a forecaster once the consumption history is known.
type Builder func(ConsumptionHistory) DemandForecaster

var registry = factory.NewRegistry[Builder]()

// ProfileConfig configures the "profile" forecaster.
type ProfileConfig struct {
	HistoryDays int `json:"history_days"`
	Hours       int `json:"hours"`
}

// StaticConfig configures the "static" forecaster.
type StaticConfig struct {
	Profile []float64 `json:"profile"`
	Hours   int       `json:"hours"`
}

func init() {
	registry.MustRegister("profile", func(conf map[string]any) (Builder, error) {
		var c ProfileConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(h ConsumptionHistory) DemandForecaster {
			return ProfileForecaster{History: h, HistoryDays: c.HistoryDays, Hours: c.Hours}
		}, nil
	})
	registry.MustRegister("static", func(conf map[string]any) (Builder, error) {
		var c StaticConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(ConsumptionHistory) DemandForecaster {
			return StaticForecaster{Profile: c.Profile, Hours: c.Hours}
		}, nil
	})
}

// Register adds a forecaster type.
func Register(name string, f factory.Factory[Builder]) error {
	return registry.Register(name, f)
}

// New creates the forecaster described by cfg. An empty type selects
// "profile".
func New(cfg factory.ModuleConfig, hist ConsumptionHistory) (DemandForecaster, error) {
	if cfg.Type == "" {
		cfg.Type = "profile"
	}
	b, err := registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	return b(hist), nil
}
