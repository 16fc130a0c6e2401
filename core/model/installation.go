package model

import (
	"errors"
	"fmt"
)

// Default cycle counts used for the degradation estimate.
const (
	DefaultCyclesAtMinSoC20 = 3500
	DefaultCyclesAtMinSoC50 = 7000
)

// ErrInvalidInstallation is returned by Installation.Validate.
var ErrInvalidInstallation = errors.New("invalid installation")

// Installation describes the battery and grid connection. Caps are energy
// amounts per one-hour period.
type Installation struct {
	CapacityWh          float64 `json:"capacity_wh" yaml:"capacity_wh"`
	MaxChargeWh         float64 `json:"max_charge_wh" yaml:"max_charge_wh"`
	MaxDischargeWh      float64 `json:"max_discharge_wh" yaml:"max_discharge_wh"`
	MaxImportWh         float64 `json:"max_import_wh" yaml:"max_import_wh"`
	ChargeEfficiency    float64 `json:"charge_efficiency" yaml:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency" yaml:"discharge_efficiency"`
	// PurchasePrice in currency units. Zero disables the degradation cost.
	PurchasePrice    float64 `json:"purchase_price" yaml:"purchase_price"`
	CyclesAtMinSoC20 float64 `json:"cycles_at_min_soc_20" yaml:"cycles_at_min_soc_20"`
	CyclesAtMinSoC50 float64 `json:"cycles_at_min_soc_50" yaml:"cycles_at_min_soc_50"`
}

// SetDefaults fills the cycle counts when unset.
func (i *Installation) SetDefaults() {
	if i.CyclesAtMinSoC20 == 0 {
		i.CyclesAtMinSoC20 = DefaultCyclesAtMinSoC20
	}
	if i.CyclesAtMinSoC50 == 0 {
		i.CyclesAtMinSoC50 = DefaultCyclesAtMinSoC50
	}
}

// Validate checks capacities and efficiencies.
func (i Installation) Validate() error {
	switch {
	case i.CapacityWh <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidInstallation)
	case i.MaxChargeWh <= 0, i.MaxDischargeWh <= 0, i.MaxImportWh <= 0:
		return fmt.Errorf("%w: charge, discharge and import caps must be positive", ErrInvalidInstallation)
	case i.ChargeEfficiency <= 0 || i.ChargeEfficiency > 1:
		return fmt.Errorf("%w: charge efficiency %v outside (0,1]", ErrInvalidInstallation, i.ChargeEfficiency)
	case i.DischargeEfficiency <= 0 || i.DischargeEfficiency > 1:
		return fmt.Errorf("%w: discharge efficiency %v outside (0,1]", ErrInvalidInstallation, i.DischargeEfficiency)
	case i.PurchasePrice < 0:
		return fmt.Errorf("%w: purchase price must not be negative", ErrInvalidInstallation)
	}
	return nil
}

// MaxImportW is the import cap expressed as power.
func (i Installation) MaxImportW() float64 { return i.MaxImportWh }

// PercentToWh converts a state of charge percentage to energy.
func (i Installation) PercentToWh(pct float64) float64 {
	return i.CapacityWh * pct / 100
}
