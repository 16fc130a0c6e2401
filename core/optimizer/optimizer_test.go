package optimizer

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mgenrique/ess-controller/core/linprog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedOptimizer() *Optimizer {
	o := New()
	o.Now = func() time.Time { return start.Add(55 * time.Minute) }
	return o
}

func TestOptimizeTFGScenario(t *testing.T) {
	res, err := fixedOptimizer().Optimize(tfgRequest())
	require.NoError(t, err)
	require.Equal(t, linprog.Optimal, res.Status)
	checkInvariants(t, res.Problem, res.Flows)

	f := res.Flows
	inst := tfgInstallation()
	// peak hour: 2000 Wh demand with a 1700 Wh import cap
	peak := 7
	lhs := 2000 + f.Charge[peak]/inst.ChargeEfficiency + f.Export[peak]
	rhs := f.Grid[peak] + f.Discharge[peak]*inst.DischargeEfficiency
	assert.InDelta(t, lhs, rhs, flowTol)
	assert.GreaterOrEqual(t, f.SoC[peak], 896-flowTol)
	assert.Greater(t, f.Discharge[peak], 0.0)

	s := res.Schedule
	require.Len(t, s.Rows, 22)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, s.Rows[0].Hour)
	assert.True(t, s.Rows[1].Time.Equal(start.Add(time.Hour)))
	assert.Equal(t, 22, s.Economics.Periods)
	assert.Equal(t, 2, s.Economics.MinPriceHour)
	assert.InDelta(t, 0.14314, s.Economics.MinBuyPrice, 1e-12)
	assert.InDelta(t, 0.24823, s.Economics.MaxBuyPrice, 1e-12)
	assert.InDelta(t, s.Economics.NetGridCost+s.Economics.NetBatteryCost, s.Economics.TotalCost, 1e-12)
	assert.InDelta(t, 1000.0/8736, s.Economics.BatteryEnergyPrice, 1e-9)
	assert.GreaterOrEqual(t, s.Economics.FinalSoCWh, 1070.08-flowTol)
}

func TestOptimizePeakInSecondPeriodIsInfeasible(t *testing.T) {
	req := tfgRequest()
	req.Horizon = horizon(55, []float64{270, 2000}, []float64{0, 0}, []float64{0.2, 0.2}, []float64{0.1, 0.1})
	res, err := fixedOptimizer().Optimize(req)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected infeasible, got %v", err)
	}
	require.NotNil(t, res)
	assert.Equal(t, linprog.Infeasible, res.Status)
	assert.True(t, res.Schedule.Empty())
}

func TestOptimizeRecoversFromLowInitialSoC(t *testing.T) {
	req := tfgRequest()
	req.Horizon = horizon(0, tfgDemand[:6], tfgSolar[:6], tfgBuy[:6], tfgSell[:6])
	req.InitialSoCWh = 500
	res, err := fixedOptimizer().Optimize(req)
	require.NoError(t, err)
	checkInvariants(t, res.Problem, res.Flows)
	assert.InDelta(t, 1700, res.Flows.SoC[0], flowTol)
}

func TestOptimizeSellDisallowedAvoidsExport(t *testing.T) {
	req := Request{
		Horizon:      horizon(0, []float64{100, 100, 100}, []float64{600, 0, 0}, []float64{0.2, 0.3, 0.3}, []float64{0.5, 0.5, 0.5}),
		Installation: tfgInstallation(),
		InitialSoCWh: 1000,
		MinSoCWh:     500,
		SellAllowed:  true,
	}
	req.Installation.PurchasePrice = 0

	res, err := fixedOptimizer().Optimize(req)
	require.NoError(t, err)
	checkInvariants(t, res.Problem, res.Flows)
	assert.Greater(t, res.Flows.Export[0], 0.0)

	req.SellAllowed = false
	res, err = fixedOptimizer().Optimize(req)
	require.NoError(t, err)
	checkInvariants(t, res.Problem, res.Flows)
	for i, e := range res.Flows.Export {
		if e > flowTol {
			t.Fatalf("period %d exported %v with selling disabled", i, e)
		}
	}
	assert.Greater(t, res.Flows.Charge[0], 0.0)
	for _, r := range res.Schedule.Rows {
		assert.Equal(t, 0.0, r.SellPrice)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	o := fixedOptimizer()
	a, err := o.Optimize(tfgRequest())
	require.NoError(t, err)
	b, err := o.Optimize(tfgRequest())
	require.NoError(t, err)
	assert.Equal(t, a.Schedule.Economics.Objective, b.Schedule.Economics.Objective)
	assert.Equal(t, a.Schedule.Rows, b.Schedule.Rows)
	assert.NotEqual(t, a.Schedule.ID, b.Schedule.ID)
}

func TestOptimizeSolverFault(t *testing.T) {
	orig := solveModel
	defer func() { solveModel = orig }()
	solveModel = func(linprog.Solver, *linprog.Model) linprog.Solution {
		return linprog.Solution{Status: linprog.SolverError, Err: errors.New("singular")}
	}
	res, err := fixedOptimizer().Optimize(tfgRequest())
	assert.ErrorIs(t, err, ErrSolverFault)
	assert.Equal(t, linprog.SolverError, res.Status)

	solveModel = func(linprog.Solver, *linprog.Model) linprog.Solution {
		return linprog.Solution{Status: linprog.Unbounded}
	}
	_, err = fixedOptimizer().Optimize(tfgRequest())
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestOptimizeBuildErrorPassesThrough(t *testing.T) {
	req := tfgRequest()
	req.Horizon.Demand = nil
	res, err := fixedOptimizer().Optimize(req)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Nil(t, res)
}

func TestSummarizeNonOptimal(t *testing.T) {
	p, err := Build(tfgRequest())
	require.NoError(t, err)
	s := Summarize(p, linprog.Solution{Status: linprog.Infeasible}, start)
	assert.True(t, s.Empty())
	assert.True(t, s.ComputedAt.Equal(start))
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	t.Cleanup(func() { ResetMetrics(nil) })

	_, err := fixedOptimizer().Optimize(tfgRequest())
	require.NoError(t, err)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{"ess_lp_solve_duration_seconds", "ess_lp_solves_total", "ess_lp_variables", "ess_lp_constraints"} {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}

// Degenerate horizons used to stop the simplex initial basis search on a
// singular matrix. Every one of these is feasible and must solve.
func TestOptimizeRandomHorizonsAlwaysSolve(t *testing.T) {
	rng := rand.New(rand.NewSource(75))
	o := fixedOptimizer()
	for k := 0; k < 300; k++ {
		n := 24 + rng.Intn(25)
		demand := make([]float64, n)
		solar := make([]float64, n)
		buy := make([]float64, n)
		sell := make([]float64, n)
		for i := 0; i < n; i++ {
			hour := (10 + i) % 24
			demand[i] = math.Round(120 + rng.Float64()*780)
			if hour >= 7 && hour <= 19 {
				solar[i] = math.Round(900 * math.Sin(math.Pi*float64(hour-6)/14) * rng.Float64())
			}
			buy[i] = 0.08 + rng.Float64()*0.22
			sell[i] = 0.03 + rng.Float64()*0.09
		}
		req := Request{
			Horizon:      horizon(rng.Intn(60), demand, solar, buy, sell),
			Installation: tfgInstallation(),
			InitialSoCWh: 300 + rng.Float64()*2000,
			MinSoCWh:     768,
			SellAllowed:  rng.Intn(2) == 0,
		}
		res, err := o.Optimize(req)
		if err != nil {
			t.Fatalf("case %d (n=%d init=%.1f min=%d): %v", k, n, req.InitialSoCWh, req.Horizon.MinutesElapsed, err)
		}
		checkInvariants(t, res.Problem, res.Flows)
	}
}
