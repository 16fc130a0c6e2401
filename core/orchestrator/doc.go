// Package orchestrator runs the periodic scheduling cycle of the battery.
//
// Every tick the Orchestrator gathers prices, forecasts and the battery
// state, checks that the inputs are complete, asks the recalculation policy
// whether the cached schedule is still valid and, when it is not, solves a
// new schedule on a background goroutine. Only one solve runs at a time. The
// grid import setpoint is derived on every tick from the current schedule:
//
//	o, err := orchestrator.New(cfg, orchestrator.Dependencies{
//		Prices:  priceStore,
//		Solar:   solarClient,
//		Battery: influxReader,
//		Demand:  forecaster,
//	})
//	if err != nil {
//		return err
//	}
//	go o.Run(ctx)
package orchestrator
