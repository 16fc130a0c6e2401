package optimizer

import "github.com/mgenrique/ess-controller/core/model"

// BatteryEnergyPrice estimates the amortised battery cost per kWh cycled.
// The cycle life is interpolated linearly between the counts rated at 20 %
// and 50 % minimum SoC. A zero purchase price disables the cost.
func BatteryEnergyPrice(inst model.Installation, minSoCWh float64) float64 {
	if inst.PurchasePrice <= 0 || inst.CapacityWh <= 0 {
		return 0
	}
	c20, c50 := inst.CyclesAtMinSoC20, inst.CyclesAtMinSoC50
	if c20 == 0 {
		c20 = model.DefaultCyclesAtMinSoC20
	}
	if c50 == 0 {
		c50 = model.DefaultCyclesAtMinSoC50
	}
	minPct := minSoCWh / inst.CapacityWh * 100
	eol := c20 + (c50-c20)*(minPct-20)/30
	lifeKWh := eol * inst.CapacityWh * (100 - minPct) / 100 / 1000
	if lifeKWh <= 0 {
		return 0
	}
	return inst.PurchasePrice / lifeKWh
}
