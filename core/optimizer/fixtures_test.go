package optimizer

import (
	"math"
	"testing"
	"time"

	"github.com/mgenrique/ess-controller/core/model"
)

const flowTol = 1e-4

var start = time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)

var (
	tfgDemand = []float64{270, 249, 197, 149, 135, 154, 180, 2000, 177, 159, 146, 270, 249, 197, 149, 135, 154, 180, 189, 177, 159, 146}
	tfgSolar  = []float64{221, 232, 228, 209, 221, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	tfgBuy    = []float64{0.19038, 0.14314, 0.15878, 0.17599, 0.17943, 0.23389, 0.2472, 0.24823, 0.23227, 0.17937, 0.16455,
		0.19038, 0.14314, 0.15878, 0.17599, 0.17943, 0.23389, 0.2472, 0.24823, 0.23227, 0.17937, 0.16455}
	tfgSell = []float64{0.08262, 0.08449, 0.09538, 0.11132, 0.11525, 0.12025, 0.13115, 0.13258, 0.11896, 0.11516, 0.0992,
		0.08262, 0.08449, 0.09538, 0.11132, 0.11525, 0.12025, 0.13115, 0.13258, 0.11896, 0.11516, 0.0992}
)

func tfgInstallation() model.Installation {
	return model.Installation{
		CapacityWh:          2560,
		MaxChargeWh:         1200,
		MaxDischargeWh:      1200,
		MaxImportWh:         1700,
		ChargeEfficiency:    0.9,
		DischargeEfficiency: 0.85,
		PurchasePrice:       1000,
		CyclesAtMinSoC20:    3500,
		CyclesAtMinSoC50:    7000,
	}
}

func horizon(minutes int, demand, solar, buy, sell []float64) model.Horizon {
	cp := func(v []float64) []float64 { return append([]float64(nil), v...) }
	return model.Horizon{
		Start:          start,
		MinutesElapsed: minutes,
		Demand:         cp(demand),
		Solar:          cp(solar),
		BuyPrice:       cp(buy),
		SellPrice:      cp(sell),
	}
}

func tfgRequest() Request {
	return Request{
		Horizon:      horizon(55, tfgDemand, tfgSolar, tfgBuy, tfgSell),
		Installation: tfgInstallation(),
		InitialSoCWh: 1070.08,
		MinSoCWh:     896,
		SellAllowed:  true,
	}
}

// checkInvariants verifies balance, SoC bounds, recursion, caps and the
// terminal floor of an optimal solution.
func checkInvariants(t *testing.T, p *Problem, f Flows) {
	t.Helper()
	h := p.Horizon
	inst := p.Installation
	n := h.Len()
	prev := p.InitialSoCWh
	for i := 0; i < n; i++ {
		lhs := h.Demand[i] + f.Charge[i]/inst.ChargeEfficiency + f.Export[i]
		rhs := f.Grid[i] + h.Solar[i] + f.Discharge[i]*inst.DischargeEfficiency
		if math.Abs(lhs-rhs) > flowTol {
			t.Fatalf("period %d: balance %v != %v", i, lhs, rhs)
		}
		if got := prev + f.Charge[i] - f.Discharge[i]; math.Abs(got-f.SoC[i]) > flowTol {
			t.Fatalf("period %d: soc %v, recursion gives %v", i, f.SoC[i], got)
		}
		for name, v := range map[string]float64{"grid": f.Grid[i], "export": f.Export[i], "charge": f.Charge[i], "discharge": f.Discharge[i]} {
			if v < -flowTol {
				t.Fatalf("period %d: negative %s %v", i, name, v)
			}
		}
		if f.Grid[i] > p.ImportCap[i]+flowTol || f.Charge[i] > p.ChargeCap[i]+flowTol || f.Discharge[i] > p.DischargeCap[i]+flowTol {
			t.Fatalf("period %d: cap exceeded g=%v ch=%v dh=%v", i, f.Grid[i], f.Charge[i], f.Discharge[i])
		}
		if f.SoC[i] > inst.CapacityWh+flowTol {
			t.Fatalf("period %d: soc %v above capacity", i, f.SoC[i])
		}
		switch {
		case i == 0 && p.InitialSoCWh < p.MinSoCWh:
			if f.SoC[0] < p.InitialSoCWh-flowTol || f.SoC[0] > p.InitialSoCWh+p.ChargeCap[0]+flowTol {
				t.Fatalf("period 0: soc %v outside relaxed range", f.SoC[0])
			}
		default:
			if f.SoC[i] < p.MinSoCWh-flowTol {
				t.Fatalf("period %d: soc %v below minimum %v", i, f.SoC[i], p.MinSoCWh)
			}
		}
		prev = f.SoC[i]
	}
	if f.SoC[n-1] < p.InitialSoCWh-flowTol {
		t.Fatalf("final soc %v below initial %v", f.SoC[n-1], p.InitialSoCWh)
	}
}
