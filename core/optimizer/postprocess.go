package optimizer

import (
	"math"
	"time"

	"github.com/mgenrique/ess-controller/core/linprog"
	"github.com/mgenrique/ess-controller/core/model"
)

// zeroTol is the magnitude below which solver values are treated as zero.
const zeroTol = 1e-6

// Flows holds the unrounded per-period solution values.
type Flows struct {
	Grid      []float64 `json:"grid"`
	Export    []float64 `json:"export"`
	Charge    []float64 `json:"charge"`
	Discharge []float64 `json:"discharge"`
	SoC       []float64 `json:"soc"`
}

// ExtractFlows reads the per-period values of an optimal solution.
func ExtractFlows(p *Problem, sol linprog.Solution) Flows {
	n := p.Periods()
	f := Flows{
		Grid:      make([]float64, n),
		Export:    make([]float64, n),
		Charge:    make([]float64, n),
		Discharge: make([]float64, n),
		SoC:       make([]float64, n),
	}
	for t := 0; t < n; t++ {
		f.Grid[t] = clean(sol.Value(p.Grid[t]))
		f.Export[t] = clean(sol.Value(p.Export[t]))
		f.Charge[t] = clean(sol.Value(p.Charge[t]))
		f.Discharge[t] = clean(sol.Value(p.Discharge[t]))
		f.SoC[t] = sol.Value(p.SoC[t])
	}
	return f
}

func clean(v float64) float64 {
	if math.Abs(v) < zeroTol {
		return 0
	}
	return v
}

// Summarize converts an optimal solution into a schedule. A non-optimal
// solution yields an empty schedule.
func Summarize(p *Problem, sol linprog.Solution, computedAt time.Time) model.Schedule {
	sched := model.Schedule{ComputedAt: computedAt}
	if sol.Status != linprog.Optimal {
		return sched
	}
	f := ExtractFlows(p, sol)
	h := p.Horizon
	c := p.Installation.CapacityWh
	n := h.Len()

	sched.Rows = make([]model.Row, n)
	for t := 0; t < n; t++ {
		soc := math.Round(f.SoC[t])
		sched.Rows[t] = model.Row{
			Hour:         t + 1,
			Time:         h.PeriodTime(t),
			BuyPrice:     h.BuyPrice[t],
			SellPrice:    h.SellPrice[t],
			DemandWh:     h.Demand[t],
			SolarWh:      h.Solar[t],
			GridImportWh: math.Round(f.Grid[t]),
			GridExportWh: math.Round(f.Export[t]),
			ChargeWh:     math.Round(f.Charge[t]),
			DischargeWh:  math.Round(f.Discharge[t]),
			SoCWh:        soc,
			SoCPercent:   model.SoCPercent(f.SoC[t], c),
		}
	}
	sched.Economics = economics(p, f, sol.Objective)
	return sched
}

func economics(p *Problem, f Flows, objective float64) model.Economics {
	h := p.Horizon
	n := h.Len()
	bep := p.BatteryEnergyPrice
	e := model.Economics{
		Objective:          objective,
		Weight:             p.Weight,
		BatteryEnergyPrice: bep,
		InitialSoCWh:       p.InitialSoCWh,
		MinSoCWh:           p.MinSoCWh,
		FinalSoCWh:         f.SoC[n-1],
		Periods:            n,
		MinBuyPrice:        math.Inf(1),
		MaxBuyPrice:        math.Inf(-1),
	}
	var sumPrice float64
	for t := 0; t < n; t++ {
		e.GrossDemandCost += h.Demand[t] * h.BuyPrice[t] / 1000
		e.NetGridCost += (f.Grid[t]*h.BuyPrice[t] - f.Export[t]*h.SellPrice[t]) / 1000
		e.NetBatteryCost += (f.Discharge[t]*bep - f.Charge[t]*bep) / 1000
		e.TotalDemandWh += h.Demand[t]
		e.TotalSolarWh += h.Solar[t]
		sumPrice += h.BuyPrice[t]
		if h.BuyPrice[t] < e.MinBuyPrice {
			e.MinBuyPrice = h.BuyPrice[t]
			e.MinPriceHour = t + 1
			e.MinPriceTime = h.PeriodTime(t)
		}
		if h.BuyPrice[t] > e.MaxBuyPrice {
			e.MaxBuyPrice = h.BuyPrice[t]
		}
	}
	e.AvgBuyPrice = sumPrice / float64(n)
	e.TotalCost = e.NetGridCost + e.NetBatteryCost
	return e
}
