package orchestrator

// Readiness tells whether a tick has everything needed to solve.
type Readiness int

const (
	Ready Readiness = iota
	MissingPrices
	MissingSolar
	MissingDemand
	MissingSoC
	MissingMinSoC
	InsufficientHorizon
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case MissingPrices:
		return "missing_prices"
	case MissingSolar:
		return "missing_solar"
	case MissingDemand:
		return "missing_demand"
	case MissingSoC:
		return "missing_soc"
	case MissingMinSoC:
		return "missing_min_soc"
	case InsufficientHorizon:
		return "insufficient_horizon"
	default:
		return "unknown"
	}
}

// Phase is the stage reached by a recompute cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInputsReady
	PhaseBuilding
	PhaseSolving
	PhaseSolved
	PhaseInfeasible
	PhaseSolverError
	PhasePublished
)

func (p Phase) String() string {
	return [...]string{"idle", "inputs_ready", "building", "solving", "solved", "infeasible", "solver_error", "published"}[p]
}
