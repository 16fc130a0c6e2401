package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mgenrique/ess-controller/core/factory"
	"github.com/mgenrique/ess-controller/core/metrics"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/infra/forecastsolar"
	"github.com/mgenrique/ess-controller/infra/influx"
	"github.com/mgenrique/ess-controller/infra/mqtt"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore, e.g. ESS_MQTT__BROKER.
const EnvPrefix = "ESS_"

type Config struct {
	Installation  model.Installation   `json:"installation"`
	Scheduler     SchedulerConfig      `json:"scheduler"`
	MQTT          mqtt.Config          `json:"mqtt"`
	Influx        influx.Config        `json:"influx"`
	ForecastSolar forecastsolar.Config `json:"forecast_solar"`
	Prices        PricesConfig         `json:"prices"`
	Demand        factory.ModuleConfig `json:"demand"`
	Cache         CacheConfig          `json:"cache"`
	Metrics       metrics.Config       `json:"metrics"`
	API           APIConfig            `json:"api"`
	Logging       LoggingConfig        `json:"logging"`
	Sentry        SentryConfig         `json:"sentry"`
}

// Load reads a YAML or JSON file, applies ESS_ environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	SetInstallationDefaults(&c.Installation)
	c.Scheduler.SetDefaults()
	c.MQTT.SetDefaults()
	c.Influx.SetDefaults()
	SetForecastSolarDefaults(&c.ForecastSolar)
	if c.Demand.Type == "" {
		c.Demand.Type = "profile"
	}
	c.Cache.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and joins the errors.
func (c Config) Validate() error {
	var errs []error
	if err := c.Installation.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scheduler.Validate(c.Installation); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt: broker is required"))
	}
	if err := c.Influx.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("influx: %w", err))
	}
	if err := ValidateForecastSolar(c.ForecastSolar); err != nil {
		errs = append(errs, fmt.Errorf("forecast_solar: %w", err))
	}
	if err := c.Prices.Validate(c.Scheduler.SellAllowed); err != nil {
		errs = append(errs, fmt.Errorf("prices: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	return errors.Join(errs...)
}
