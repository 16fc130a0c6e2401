package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/core/orchestrator"
	"github.com/mgenrique/ess-controller/core/recalc"
	"github.com/mgenrique/ess-controller/infra/forecastsolar"
)

// SetInstallationDefaults applies the reference battery when the section is
// left empty. Individual zero fields are filled too.
func SetInstallationDefaults(i *model.Installation) {
	if i.CapacityWh == 0 {
		i.CapacityWh = 2560
	}
	if i.MaxChargeWh == 0 {
		i.MaxChargeWh = 1200
	}
	if i.MaxDischargeWh == 0 {
		i.MaxDischargeWh = 1200
	}
	if i.MaxImportWh == 0 {
		i.MaxImportWh = 1700
	}
	if i.ChargeEfficiency == 0 {
		i.ChargeEfficiency = 0.9
	}
	if i.DischargeEfficiency == 0 {
		i.DischargeEfficiency = 0.85
	}
	i.SetDefaults()
}

// SchedulerConfig drives the orchestrator.
type SchedulerConfig struct {
	Interval            time.Duration `json:"interval"`
	RecomputeInterval   time.Duration `json:"recompute_interval"`
	DeviationPercent    float64       `json:"deviation_percent"`
	UserMinSoCPercent   float64       `json:"user_min_soc_percent"`
	SafetyMarginPercent float64       `json:"safety_margin_percent"`
	SellAllowed         bool          `json:"sell_allowed"`
	ForecastCorrection  bool          `json:"forecast_correction"`
	// CorrectionDays is the history window of the forecast correction.
	CorrectionDays int     `json:"correction_days"`
	MinImportW     float64 `json:"min_import_w"`
	// Timezone is an IANA name; empty means the host zone.
	Timezone string `json:"timezone"`
}

func (c *SchedulerConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = orchestrator.DefaultInterval
	}
	if c.RecomputeInterval <= 0 {
		c.RecomputeInterval = recalc.DefaultInterval
	}
	if c.DeviationPercent <= 0 {
		c.DeviationPercent = recalc.DefaultDeviationPercent
	}
	if c.UserMinSoCPercent == 0 {
		c.UserMinSoCPercent = orchestrator.DefaultUserMinSoCPercent
	}
	if c.CorrectionDays <= 0 {
		c.CorrectionDays = 7
	}
}

func (c SchedulerConfig) Validate(inst model.Installation) error {
	if _, err := c.Location(); err != nil {
		return err
	}
	_, err := c.Orchestrator(inst)
	return err
}

// Location resolves Timezone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Orchestrator builds the orchestrator configuration.
func (c SchedulerConfig) Orchestrator(inst model.Installation) (orchestrator.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return orchestrator.Config{}, err
	}
	oc := orchestrator.Config{
		Installation: inst,
		Interval:     c.Interval,
		Policy: recalc.Policy{
			DeviationPercent: c.DeviationPercent,
			Interval:         c.RecomputeInterval,
		},
		UserMinSoCPercent:   c.UserMinSoCPercent,
		SafetyMarginPercent: c.SafetyMarginPercent,
		SellAllowed:         c.SellAllowed,
		ForecastCorrection:  c.ForecastCorrection,
		MinImportW:          c.MinImportW,
		Location:            loc,
	}
	oc.SetDefaults()
	return oc, oc.Validate()
}

// PricesConfig names the MQTT topics carrying day-ahead price maps.
type PricesConfig struct {
	BuyTopic  string `json:"buy_topic"`
	SellTopic string `json:"sell_topic"`
}

// Validate requires a sell feed only when selling is allowed.
func (c PricesConfig) Validate(sellAllowed bool) error {
	if c.BuyTopic == "" {
		return errors.New("buy_topic is required")
	}
	if sellAllowed && c.SellTopic == "" {
		return errors.New("sell_topic is required when selling is allowed")
	}
	return nil
}

// SetForecastSolarDefaults fills the endpoint and cadence.
func SetForecastSolarDefaults(c *forecastsolar.Config) {
	if c.BaseURL == "" {
		c.BaseURL = forecastsolar.DefaultBaseURL
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = forecastsolar.DefaultRefreshInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = forecastsolar.DefaultTimeout
	}
}

// ValidateForecastSolar checks the plant description.
func ValidateForecastSolar(c forecastsolar.Config) error {
	switch {
	case c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("latitude %v outside [-90,90]", c.Latitude)
	case c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("longitude %v outside [-180,180]", c.Longitude)
	case c.PeakPowerKW <= 0:
		return errors.New("peak_power_kw must be positive")
	}
	return nil
}

// CacheConfig locates the SQLite cache.
type CacheConfig struct {
	Path string `json:"path"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "ess_cache.db"
	}
}

// APIConfig configures the HTTP API. An empty Addr disables it.
type APIConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

func (c *APIConfig) SetDefaults() {}
