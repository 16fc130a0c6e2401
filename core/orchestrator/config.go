package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/core/recalc"
)

// Defaults of the scheduling loop.
const (
	DefaultInterval          = 30 * time.Second
	DefaultUserMinSoCPercent = 30.0
)

// Config holds the parameters of the scheduling loop.
type Config struct {
	Installation model.Installation
	// Interval between ticks.
	Interval time.Duration
	Policy   recalc.Policy
	// UserMinSoCPercent is the user floor combined with the inverter floor.
	UserMinSoCPercent float64
	// SafetyMarginPercent is added on top of the larger floor.
	SafetyMarginPercent float64
	SellAllowed         bool
	ForecastCorrection  bool
	// MinImportW is proposed once the battery reached the target SoC.
	MinImportW float64
	// Location used to evaluate wall-clock hours. Defaults to time.Local.
	Location *time.Location
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.Installation.SetDefaults()
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.UserMinSoCPercent == 0 {
		c.UserMinSoCPercent = DefaultUserMinSoCPercent
	}
	if c.Policy.DeviationPercent <= 0 {
		c.Policy.DeviationPercent = recalc.DefaultDeviationPercent
	}
	if c.Policy.Interval <= 0 {
		c.Policy.Interval = recalc.DefaultInterval
	}
	c.Policy.CapacityWh = c.Installation.CapacityWh
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Validate checks the configuration after SetDefaults.
func (c Config) Validate() error {
	if err := c.Installation.Validate(); err != nil {
		return err
	}
	switch {
	case c.UserMinSoCPercent < 0 || c.UserMinSoCPercent > 100:
		return fmt.Errorf("user min soc %v outside [0,100]", c.UserMinSoCPercent)
	case c.SafetyMarginPercent < 0:
		return errors.New("safety margin must not be negative")
	case c.MinImportW < 0 || c.MinImportW > c.Installation.MaxImportW():
		return fmt.Errorf("min import %v W outside [0,%v]", c.MinImportW, c.Installation.MaxImportW())
	}
	return nil
}

// EffectiveMinSoCPercent combines the inverter and user floors with the
// safety margin, clamped to 100.
func (c Config) EffectiveMinSoCPercent(inverterPercent float64) float64 {
	floor := inverterPercent
	if c.UserMinSoCPercent > floor {
		floor = c.UserMinSoCPercent
	}
	floor += c.SafetyMarginPercent
	if floor > 100 {
		return 100
	}
	if floor < 0 {
		return 0
	}
	return floor
}
