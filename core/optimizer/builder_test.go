package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryEnergyPrice(t *testing.T) {
	inst := tfgInstallation()
	// 35 % min SoC: 5250 cycles, 8736 kWh over the battery life.
	assert.InDelta(t, 1000.0/8736, BatteryEnergyPrice(inst, 896), 1e-9)

	inst.PurchasePrice = 0
	assert.Equal(t, 0.0, BatteryEnergyPrice(inst, 896))

	inst = tfgInstallation()
	inst.CyclesAtMinSoC20, inst.CyclesAtMinSoC50 = 0, 0
	assert.InDelta(t, 1000.0/8736, BatteryEnergyPrice(inst, 896), 1e-9)
}

func TestBuildScalesFirstPeriod(t *testing.T) {
	req := tfgRequest()
	p, err := Build(req)
	require.NoError(t, err)

	assert.InDelta(t, 100, p.ChargeCap[0], 1e-9)
	assert.InDelta(t, 100, p.DischargeCap[0], 1e-9)
	assert.InDelta(t, 1700.0*5/60, p.ImportCap[0], 1e-9)
	assert.InDelta(t, 22.5, p.Horizon.Demand[0], 1e-9)
	assert.InDelta(t, 221.0*5/60, p.Horizon.Solar[0], 1e-9)
	assert.Equal(t, 1200.0, p.ChargeCap[1])
	assert.Equal(t, 896.0, p.FirstFloor)

	// caller slices untouched
	assert.Equal(t, 270.0, req.Horizon.Demand[0])
	assert.Equal(t, 22*5, p.Model.NumVariables())
	assert.Equal(t, 22*2, p.Model.NumConstraints())
}

func TestBuildRelaxedFirstFloor(t *testing.T) {
	req := tfgRequest()
	req.Horizon.MinutesElapsed = 0
	req.InitialSoCWh = 500
	p, err := Build(req)
	require.NoError(t, err)
	// min(1200, max(0, 1700+221-270)·0.9) = 1200
	assert.InDelta(t, 1700, p.FirstFloor, 1e-9)

	req.Horizon.Demand[0] = 1900
	req.Horizon.Solar[0] = 0
	p, err = Build(req)
	require.NoError(t, err)
	assert.InDelta(t, 500, p.FirstFloor, 1e-9)
}

func TestBuildSellDisallowedZeroesPrices(t *testing.T) {
	req := tfgRequest()
	req.SellAllowed = false
	p, err := Build(req)
	require.NoError(t, err)
	for i, v := range p.Export {
		assert.Equal(t, 0.0, p.Horizon.SellPrice[i])
		if c := p.Model.Cost(v); c != 0 {
			t.Fatalf("export %d has cost %v", i, c)
		}
	}
	assert.Equal(t, tfgSell[3], req.Horizon.SellPrice[3])
}

func TestBuildWeightDoublesWithSolarSurplus(t *testing.T) {
	demand := []float64{100, 100, 100}
	buy := []float64{0.1, 0.2, 0.3}
	sell := []float64{0, 0, 0}

	short := Request{Horizon: horizon(0, demand, []float64{0, 50, 50}, buy, sell),
		Installation: tfgInstallation(), InitialSoCWh: 1000, MinSoCWh: 500}
	surplus := short
	surplus.Horizon = horizon(0, demand, []float64{100, 100, 100}, buy, sell)

	ps, err := Build(short)
	require.NoError(t, err)
	pl, err := Build(surplus)
	require.NoError(t, err)
	assert.InDelta(t, 0.2/1000, ps.Weight, 1e-15)
	assert.Equal(t, 2*ps.Weight, pl.Weight)
}

func TestBuildErrors(t *testing.T) {
	req := tfgRequest()
	req.Horizon.Solar = req.Horizon.Solar[:5]
	_, err := Build(req)
	assert.ErrorIs(t, err, ErrMissingInput)

	req = tfgRequest()
	req.Horizon.BuyPrice = nil
	_, err = Build(req)
	assert.ErrorIs(t, err, ErrMissingInput)

	req = tfgRequest()
	req.Horizon = horizon(0, []float64{1}, []float64{1}, []float64{1}, []float64{1})
	_, err = Build(req)
	if !errors.Is(err, ErrInsufficientHorizon) {
		t.Fatalf("expected insufficient horizon, got %v", err)
	}

	req = tfgRequest()
	req.Installation.DischargeEfficiency = 0
	_, err = Build(req)
	assert.Error(t, err)

	req = tfgRequest()
	req.InitialSoCWh = 3000
	_, err = Build(req)
	assert.ErrorIs(t, err, ErrMissingInput)
}
