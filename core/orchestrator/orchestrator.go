package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/logger"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/core/monitoring"
	"github.com/mgenrique/ess-controller/core/optimizer"
	"github.com/mgenrique/ess-controller/core/prediction"
	"github.com/mgenrique/ess-controller/core/recalc"
	"github.com/mgenrique/ess-controller/internal/eventbus"
)

const publishTimeout = 10 * time.Second

// ErrSolvePanic wraps a panic recovered from the solve goroutine.
var ErrSolvePanic = errors.New("solve panicked")

// ReasonInFlight marks a tick skipped because a solve is still running.
const ReasonInFlight = "in_flight"

// Dependencies are the collaborators of the Orchestrator. Prices, Solar,
// Battery and Demand are required.
type Dependencies struct {
	Prices    PriceSource
	Solar     SolarSource
	Battery   BatterySource
	Demand    prediction.DemandForecaster
	Corrector SolarCorrector
	Publisher Publisher
	Optimizer *optimizer.Optimizer
	Logger    logger.Logger
	Monitor   monitoring.Monitor
	Bus       *eventbus.TypedBus[events.Event]
	Now       func() time.Time
}

// TickResult summarises one tick.
type TickResult struct {
	Readiness Readiness
	Decision  recalc.Decision
	// Started is true when a solve was launched by this tick.
	Started bool
	// InFlight is true when a recompute was due but a solve was running.
	InFlight        bool
	Setpoint        model.Setpoint
	SetpointChanged bool
	Err             error
}

// inputs gathered at the start of a tick.
type inputs struct {
	buy, sell, solar, demand model.Series
	socPercent, minPercent   float64

	priceErr, solarErr, demandErr, socErr, minErr error
}

// Orchestrator owns the schedule, the recalculation state and the setpoint.
type Orchestrator struct {
	cfg  Config
	deps Dependencies
	log  logger.Logger
	mon  monitoring.Monitor
	now  func() time.Time

	mu       sync.RWMutex
	schedule model.Schedule
	state    recalc.State
	setpoint setpointState

	inFlight atomic.Bool
	force    atomic.Bool
	kick     chan struct{}
	wg       sync.WaitGroup
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if deps.Prices == nil || deps.Solar == nil || deps.Battery == nil || deps.Demand == nil {
		return nil, errors.New("orchestrator: prices, solar, battery and demand sources are required")
	}
	if deps.Optimizer == nil {
		deps.Optimizer = optimizer.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Monitor == nil {
		deps.Monitor = monitoring.Current()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
		mon:  deps.Monitor,
		now:  deps.Now,
		kick: make(chan struct{}, 1),
	}, nil
}

// Run ticks until ctx is canceled and then waits for an in-flight solve.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	defer o.Wait()
	o.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		case <-o.kick:
			o.Tick(ctx)
		}
	}
}

// Force requests a recompute on the next tick regardless of the policy and
// wakes Run.
func (o *Orchestrator) Force() {
	o.force.Store(true)
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Wait blocks until the in-flight solve, if any, has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Schedule returns a copy of the current schedule.
func (o *Orchestrator) Schedule() (model.Schedule, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.schedule.Empty() {
		return model.Schedule{}, false
	}
	return o.schedule.Clone(), true
}

// Setpoint returns the last proposed setpoint. At is zero when none was
// proposed yet.
func (o *Orchestrator) Setpoint() model.Setpoint {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.setpoint.current
}

// LastComputedAt returns the time of the last successful solve.
func (o *Orchestrator) LastComputedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.LastComputedAt
}

// Tick runs one cycle: gather inputs, check readiness, evaluate the policy,
// possibly start a solve and update the setpoint.
func (o *Orchestrator) Tick(ctx context.Context) TickResult {
	now := o.now().In(o.cfg.Location)
	in := o.gather(ctx, now)

	var res TickResult
	if in.socErr == nil {
		res.Setpoint, res.SetpointChanged = o.updateSetpoint(ctx, in.socPercent, now)
	}

	readiness, req, err := o.prepare(in, now)
	res.Readiness = readiness
	if readiness != Ready {
		res.Err = err
		o.log.Debugf("inputs not ready (%s): %v", readiness, err)
		o.emitCycle(events.CycleEvent{Outcome: events.OutcomeSkipped, Phase: PhaseIdle.String(), Reason: readiness.String(), Err: err, At: now})
		return res
	}

	o.mu.RLock()
	st := o.state
	o.mu.RUnlock()
	if !o.inFlight.CompareAndSwap(false, true) {
		res.Decision = o.cfg.Policy.Evaluate(st, req.InitialSoCWh, true, now, o.force.Load())
		if !res.Decision.Recompute {
			o.emitCycle(events.CycleEvent{Outcome: events.OutcomeSkipped, Phase: PhaseInputsReady.String(), Reason: string(res.Decision.Reason), At: now})
			return res
		}
		res.InFlight = true
		o.log.Debugf("recompute due (%s) but a solve is in flight", res.Decision.Reason)
		o.emitCycle(events.CycleEvent{Outcome: events.OutcomeSkipped, Phase: PhaseSolving.String(), Reason: ReasonInFlight, At: now})
		return res
	}
	// The flag is consumed only while holding the single-flight slot so a
	// Force arriving during a running solve is seen by finish.
	res.Decision = o.cfg.Policy.Evaluate(st, req.InitialSoCWh, true, now, o.force.Swap(false))
	if !res.Decision.Recompute {
		o.inFlight.Store(false)
		o.emitCycle(events.CycleEvent{Outcome: events.OutcomeSkipped, Phase: PhaseInputsReady.String(), Reason: string(res.Decision.Reason), At: now})
		return res
	}
	res.Started = true
	o.log.Infof("recomputing schedule: %s (deviation %.2f%%)", res.Decision.Reason, res.Decision.DeviationPercent)
	o.wg.Add(1)
	go o.solve(context.WithoutCancel(ctx), req, string(res.Decision.Reason), now)
	return res
}

// gather fetches every input concurrently. Failures are kept per input so
// readiness can name the missing one.
func (o *Orchestrator) gather(ctx context.Context, now time.Time) inputs {
	var in inputs
	var g errgroup.Group
	g.Go(func() error {
		in.buy, in.sell, in.priceErr = o.deps.Prices.Prices(ctx, now)
		return in.priceErr
	})
	g.Go(func() error {
		in.solar, in.solarErr = o.deps.Solar.SolarForecast(ctx, now)
		if in.solarErr != nil || !o.cfg.ForecastCorrection || o.deps.Corrector == nil {
			return in.solarErr
		}
		corr, err := o.deps.Corrector.Correction(ctx, now)
		if err != nil {
			o.log.Warnf("solar correction unavailable, using raw forecast: %v", err)
			return nil
		}
		in.solar = corr.Apply(in.solar)
		return nil
	})
	g.Go(func() error {
		in.demand, in.demandErr = o.deps.Demand.Forecast(ctx, now)
		return in.demandErr
	})
	g.Go(func() error {
		in.socPercent, in.socErr = o.deps.Battery.StateOfCharge(ctx)
		return in.socErr
	})
	g.Go(func() error {
		in.minPercent, in.minErr = o.deps.Battery.MinimumSoC(ctx)
		return in.minErr
	})
	if err := g.Wait(); err != nil {
		o.log.Debugf("gather inputs: %v", err)
	}
	return in
}

// prepare maps the gathered inputs to a readiness value and, when ready,
// an optimisation request.
func (o *Orchestrator) prepare(in inputs, now time.Time) (Readiness, optimizer.Request, error) {
	sell := in.sell
	if in.priceErr == nil && sell.Empty() && !o.cfg.SellAllowed {
		sell = in.buy.Scale(func(time.Time) float64 { return 0 })
	}
	switch {
	case in.priceErr != nil || in.buy.Empty() || sell.Empty():
		return MissingPrices, optimizer.Request{}, errOr(in.priceErr, "no prices")
	case in.solarErr != nil || in.solar.Empty():
		return MissingSolar, optimizer.Request{}, errOr(in.solarErr, "no solar forecast")
	case in.demandErr != nil || in.demand.Empty():
		return MissingDemand, optimizer.Request{}, errOr(in.demandErr, "no demand forecast")
	case in.socErr != nil:
		return MissingSoC, optimizer.Request{}, in.socErr
	case in.minErr != nil:
		return MissingMinSoC, optimizer.Request{}, in.minErr
	}
	h, err := model.NewHorizon(now, in.demand, in.solar, in.buy, sell)
	if err != nil {
		return InsufficientHorizon, optimizer.Request{}, err
	}
	inst := o.cfg.Installation
	return Ready, optimizer.Request{
		Horizon:      h,
		Installation: inst,
		InitialSoCWh: inst.PercentToWh(in.socPercent),
		MinSoCWh:     inst.PercentToWh(o.cfg.EffectiveMinSoCPercent(in.minPercent)),
		SellAllowed:  o.cfg.SellAllowed,
	}, nil
}

func errOr(err error, msg string) error {
	if err != nil {
		return err
	}
	return errors.New(msg)
}

// solve runs on its own goroutine. The previous schedule is replaced only
// on success.
func (o *Orchestrator) solve(ctx context.Context, req optimizer.Request, reason string, at time.Time) {
	defer o.wg.Done()
	defer o.finish()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrSolvePanic, r)
			o.log.Errorf("solve: %v", err)
			o.mon.CaptureException(err, map[string]string{"reason": reason, "phase": PhaseSolverError.String()})
			o.emitCycle(events.CycleEvent{
				Outcome:  events.OutcomeFailure,
				Phase:    PhaseSolverError.String(),
				Reason:   reason,
				Err:      err,
				At:       at,
				Duration: time.Since(start),
			})
		}
	}()

	res, err := o.deps.Optimizer.Optimize(req)
	ev := events.CycleEvent{Reason: reason, At: at}
	if res != nil {
		ev.Status = res.Status.String()
	}
	if err != nil {
		ev.Outcome = events.OutcomeFailure
		ev.Err = err
		ev.Duration = time.Since(start)
		tags := map[string]string{"reason": reason, "status": ev.Status}
		switch {
		case res == nil:
			ev.Phase = PhaseBuilding.String()
			o.log.Errorf("build schedule: %v", err)
		case errors.Is(err, optimizer.ErrInfeasible), errors.Is(err, optimizer.ErrUnbounded):
			ev.Phase = PhaseInfeasible.String()
			o.log.Warnf("no feasible schedule, keeping previous: %v", err)
		default:
			ev.Phase = PhaseSolverError.String()
			o.log.Errorf("solver failure: %v", err)
		}
		tags["phase"] = ev.Phase
		o.mon.CaptureException(err, tags)
		o.emitCycle(ev)
		return
	}

	sch := res.Schedule
	o.mu.Lock()
	o.schedule = sch.Clone()
	o.state.Record(req.InitialSoCWh, at)
	o.setpoint.consumed = false
	o.mu.Unlock()
	o.log.Infof("schedule %s computed: %d periods, total cost %.4f", sch.ID, len(sch.Rows), sch.Economics.TotalCost)

	if o.deps.Bus != nil {
		o.deps.Bus.Publish(events.ScheduleEvent{Schedule: sch, Reason: reason})
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	ev.Phase = PhasePublished.String()
	if err := o.deps.Publisher.PublishSchedule(pctx, sch); err != nil {
		ev.Phase = PhaseSolved.String()
		o.log.Errorf("publish schedule: %v", err)
		o.mon.CaptureException(err, map[string]string{"phase": "publish"})
	}
	ev.Outcome = events.OutcomeSuccess
	ev.Duration = time.Since(start)
	o.emitCycle(ev)
}

// finish releases the single-flight flag and wakes Run when a forced
// recompute arrived while the solve was running.
func (o *Orchestrator) finish() {
	o.inFlight.Store(false)
	if o.force.Load() {
		select {
		case o.kick <- struct{}{}:
		default:
		}
	}
}

// updateSetpoint recomputes the setpoint from the current schedule and
// publishes it when it changed.
func (o *Orchestrator) updateSetpoint(ctx context.Context, socPercent float64, now time.Time) (model.Setpoint, bool) {
	o.mu.Lock()
	changed := false
	if !o.schedule.Empty() {
		changed = o.setpoint.next(o.schedule, socPercent, now, o.cfg.MinImportW, o.cfg.Installation.MaxImportW())
	}
	sp := o.setpoint.current
	o.mu.Unlock()
	if !changed {
		return sp, false
	}
	o.log.Infof("setpoint %.0f W (soc %.1f%%, target %d%%)", sp.Watts, sp.SoCPercent, sp.TargetSoCPercent)
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(events.SetpointEvent{Setpoint: sp})
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := o.deps.Publisher.PublishSetpoint(pctx, sp); err != nil {
		o.log.Errorf("publish setpoint: %v", err)
		o.mon.CaptureException(err, map[string]string{"phase": "publish_setpoint"})
	}
	return sp, true
}

func (o *Orchestrator) emitCycle(ev events.CycleEvent) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(ev)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
