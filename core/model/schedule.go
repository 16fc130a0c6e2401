package model

import (
	"math"
	"time"
)

// Row is one hourly line of a published schedule. Energy values are rounded
// to whole watt-hours.
type Row struct {
	Hour         int       `json:"hour"`
	Time         time.Time `json:"time"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	DemandWh     float64   `json:"demand_wh"`
	SolarWh      float64   `json:"solar_wh"`
	GridImportWh float64   `json:"grid_import_wh"`
	GridExportWh float64   `json:"grid_export_wh"`
	ChargeWh     float64   `json:"charge_wh"`
	DischargeWh  float64   `json:"discharge_wh"`
	SoCWh        float64   `json:"soc_wh"`
	SoCPercent   int       `json:"soc_percent"`
}

// Economics summarises the cost figures of a schedule. Money values are in
// the currency of the price feed.
type Economics struct {
	Objective          float64   `json:"objective"`
	GrossDemandCost    float64   `json:"gross_demand_cost"`
	NetGridCost        float64   `json:"net_grid_cost"`
	NetBatteryCost     float64   `json:"net_battery_cost"`
	TotalCost          float64   `json:"total_cost"`
	TotalDemandWh      float64   `json:"total_demand_wh"`
	TotalSolarWh       float64   `json:"total_solar_wh"`
	AvgBuyPrice        float64   `json:"avg_buy_price"`
	MinBuyPrice        float64   `json:"min_buy_price"`
	MaxBuyPrice        float64   `json:"max_buy_price"`
	MinPriceHour       int       `json:"min_price_hour"`
	MinPriceTime       time.Time `json:"min_price_time"`
	Weight             float64   `json:"weight"`
	BatteryEnergyPrice float64   `json:"battery_energy_price"`
	InitialSoCWh       float64   `json:"initial_soc_wh"`
	MinSoCWh           float64   `json:"min_soc_wh"`
	FinalSoCWh         float64   `json:"final_soc_wh"`
	Periods            int       `json:"periods"`
}

// Schedule is the post-processed result of one optimisation run.
type Schedule struct {
	ID         string    `json:"id"`
	ComputedAt time.Time `json:"computed_at"`
	Rows       []Row     `json:"rows"`
	Economics  Economics `json:"economics"`
}

// Empty reports whether the schedule has no rows.
func (s Schedule) Empty() bool { return len(s.Rows) == 0 }

// RowAt returns the row for the hour containing at.
func (s Schedule) RowAt(at time.Time) (Row, bool) {
	h := HourStart(at)
	for _, r := range s.Rows {
		if r.Time.Equal(h) {
			return r, true
		}
	}
	return Row{}, false
}

// TargetSoCPercent returns the scheduled SoC percentage for the hour
// containing at.
func (s Schedule) TargetSoCPercent(at time.Time) (int, bool) {
	r, ok := s.RowAt(at)
	if !ok {
		return 0, false
	}
	return r.SoCPercent, true
}

// Clone returns a copy that shares no slices with s.
func (s Schedule) Clone() Schedule {
	c := s
	c.Rows = append([]Row(nil), s.Rows...)
	return c
}

// SoCPercent converts energy to an integer percentage of capacity.
func SoCPercent(socWh, capacityWh float64) int {
	if capacityWh <= 0 {
		return 0
	}
	return int(math.Round(socWh / capacityWh * 100))
}
