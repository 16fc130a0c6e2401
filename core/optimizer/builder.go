package optimizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/mgenrique/ess-controller/core/linprog"
	"github.com/mgenrique/ess-controller/core/model"
)

var (
	// ErrInsufficientHorizon is returned when fewer than two periods are available.
	ErrInsufficientHorizon = model.ErrInsufficientHorizon
	// ErrMissingInput is returned for absent, mismatched or invalid inputs.
	ErrMissingInput = errors.New("missing or invalid optimiser input")
)

// Request carries everything the builder needs for one run.
type Request struct {
	Horizon      model.Horizon
	Installation model.Installation
	InitialSoCWh float64
	MinSoCWh     float64
	SellAllowed  bool
}

// Problem is a built LP together with the effective inputs it was built
// from. Horizon holds the period-0 scaled demand and solar and, when selling
// is disabled, zero sell prices.
type Problem struct {
	Model        *linprog.Model
	Horizon      model.Horizon
	Installation model.Installation

	InitialSoCWh       float64
	MinSoCWh           float64
	Weight             float64
	BatteryEnergyPrice float64
	SellAllowed        bool

	// Per-period caps after period-0 scaling.
	ChargeCap    []float64
	DischargeCap []float64
	ImportCap    []float64
	// FirstFloor is the lower bound applied to soc_0.
	FirstFloor float64

	Grid      []linprog.Var
	Export    []linprog.Var
	Charge    []linprog.Var
	Discharge []linprog.Var
	SoC       []linprog.Var
}

// Periods returns the number of periods.
func (p *Problem) Periods() int { return p.Horizon.Len() }

func validateRequest(req Request) error {
	h := req.Horizon
	if h.Demand == nil || h.Solar == nil || h.BuyPrice == nil || h.SellPrice == nil {
		return fmt.Errorf("%w: horizon series are required", ErrMissingInput)
	}
	n := len(h.Demand)
	if len(h.Solar) != n || len(h.BuyPrice) != n || len(h.SellPrice) != n {
		return fmt.Errorf("%w: series lengths differ (demand=%d solar=%d buy=%d sell=%d)",
			ErrMissingInput, n, len(h.Solar), len(h.BuyPrice), len(h.SellPrice))
	}
	if n <= 1 {
		return fmt.Errorf("%w: %d periods", ErrInsufficientHorizon, n)
	}
	if h.MinutesElapsed < 0 || h.MinutesElapsed > 59 {
		return fmt.Errorf("%w: minutes elapsed %d", ErrMissingInput, h.MinutesElapsed)
	}
	for _, s := range [][]float64{h.Demand, h.Solar, h.BuyPrice, h.SellPrice} {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite series value", ErrMissingInput)
			}
		}
	}
	if err := req.Installation.Validate(); err != nil {
		return err
	}
	c := req.Installation.CapacityWh
	if math.IsNaN(req.InitialSoCWh) || req.InitialSoCWh < 0 || req.InitialSoCWh > c {
		return fmt.Errorf("%w: initial SoC %.2f Wh outside [0, %.0f]", ErrMissingInput, req.InitialSoCWh, c)
	}
	if math.IsNaN(req.MinSoCWh) || req.MinSoCWh < 0 || req.MinSoCWh > c {
		return fmt.Errorf("%w: minimum SoC %.2f Wh outside [0, %.0f]", ErrMissingInput, req.MinSoCWh, c)
	}
	return nil
}

// Build turns a request into an LP. The request slices are never modified.
func Build(req Request) (*Problem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	inst := req.Installation
	h := req.Horizon.Clone()
	n := h.Len()
	frac := h.FirstPeriodFraction()

	h.Demand[0] *= frac
	h.Solar[0] *= frac
	if !req.SellAllowed {
		for t := range h.SellPrice {
			h.SellPrice[t] = 0
		}
	}

	p := &Problem{
		Model:              linprog.NewModel(),
		Horizon:            h,
		Installation:       inst,
		InitialSoCWh:       req.InitialSoCWh,
		MinSoCWh:           req.MinSoCWh,
		BatteryEnergyPrice: BatteryEnergyPrice(inst, req.MinSoCWh),
		SellAllowed:        req.SellAllowed,
		ChargeCap:          make([]float64, n),
		DischargeCap:       make([]float64, n),
		ImportCap:          make([]float64, n),
		Grid:               make([]linprog.Var, n),
		Export:             make([]linprog.Var, n),
		Charge:             make([]linprog.Var, n),
		Discharge:          make([]linprog.Var, n),
		SoC:                make([]linprog.Var, n),
	}
	p.Weight = weight(h)

	for t := 0; t < n; t++ {
		scale := 1.0
		if t == 0 {
			scale = frac
		}
		p.ChargeCap[t] = inst.MaxChargeWh * scale
		p.DischargeCap[t] = inst.MaxDischargeWh * scale
		p.ImportCap[t] = inst.MaxImportWh * scale
	}

	p.FirstFloor = req.MinSoCWh
	if req.InitialSoCWh < req.MinSoCWh {
		available := math.Max(0, p.ImportCap[0]+h.Solar[0]-h.Demand[0])
		p.FirstFloor = req.InitialSoCWh + math.Min(p.ChargeCap[0], available*inst.ChargeEfficiency)
	}
	p.FirstFloor = math.Min(p.FirstFloor, inst.CapacityWh)

	m := p.Model
	bep := p.BatteryEnergyPrice
	inf := math.Inf(1)
	for t := 0; t < n; t++ {
		p.Grid[t] = m.AddVariable(fmt.Sprintf("grid_%d", t), 0, p.ImportCap[t], h.BuyPrice[t]/1000)
		p.Export[t] = m.AddVariable(fmt.Sprintf("export_%d", t), 0, inf, -h.SellPrice[t]/1000)
		p.Charge[t] = m.AddVariable(fmt.Sprintf("charge_%d", t), 0, p.ChargeCap[t], -bep/1000)
		p.Discharge[t] = m.AddVariable(fmt.Sprintf("discharge_%d", t), 0, p.DischargeCap[t], bep/1000)

		floor := req.MinSoCWh
		switch {
		case t == 0:
			floor = p.FirstFloor
		case t == n-1:
			floor = math.Max(floor, req.InitialSoCWh)
		}
		cost := 0.0
		if t == n-1 {
			cost = -p.Weight
		}
		p.SoC[t] = m.AddVariable(fmt.Sprintf("soc_%d", t), floor, inst.CapacityWh, cost)
	}

	for t := 0; t < n; t++ {
		// d + ch/ηc + e = g + s + dh·ηd
		m.AddConstraint(fmt.Sprintf("balance_%d", t), []linprog.Term{
			{Var: p.Charge[t], Coef: 1 / inst.ChargeEfficiency},
			{Var: p.Export[t], Coef: 1},
			{Var: p.Grid[t], Coef: -1},
			{Var: p.Discharge[t], Coef: -inst.DischargeEfficiency},
		}, linprog.EQ, h.Solar[t]-h.Demand[t])

		terms := []linprog.Term{
			{Var: p.SoC[t], Coef: 1},
			{Var: p.Charge[t], Coef: -1},
			{Var: p.Discharge[t], Coef: 1},
		}
		rhs := req.InitialSoCWh
		if t > 0 {
			terms = append(terms, linprog.Term{Var: p.SoC[t-1], Coef: -1})
			rhs = 0
		}
		m.AddConstraint(fmt.Sprintf("soc_%d", t), terms, linprog.EQ, rhs)
	}
	return p, nil
}

// weight values the final SoC at the average buy price, doubled when the
// solar forecast covers the demand.
func weight(h model.Horizon) float64 {
	var sumD, sumS, sumP float64
	for t := range h.Demand {
		sumD += h.Demand[t]
		sumS += h.Solar[t]
		sumP += h.BuyPrice[t]
	}
	avg := sumP / float64(len(h.BuyPrice))
	if sumS >= sumD {
		return 2 * avg / 1000
	}
	return avg / 1000
}
