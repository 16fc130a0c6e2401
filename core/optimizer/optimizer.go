package optimizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mgenrique/ess-controller/core/linprog"
	"github.com/mgenrique/ess-controller/core/model"
)

var (
	// ErrInfeasible indicates the LP had no feasible solution.
	ErrInfeasible = errors.New("lp infeasible")
	// ErrUnbounded indicates the LP objective is unbounded.
	ErrUnbounded = errors.New("lp unbounded")
	// ErrSolverFault indicates the solver itself failed.
	ErrSolverFault = errors.New("lp solver fault")
)

// solveModel runs the LP. Tests override it to simulate solver faults.
var solveModel = func(s linprog.Solver, m *linprog.Model) linprog.Solution {
	return s.Solve(m)
}

// Result is the outcome of one optimisation run.
type Result struct {
	Schedule model.Schedule
	Flows    Flows
	Status   linprog.Status
	Problem  *Problem
}

// Optimizer chains Build, Solve and Summarize.
type Optimizer struct {
	Solver linprog.Solver
	// Now stamps the schedule. Defaults to time.Now.
	Now func() time.Time
}

// New returns an Optimizer with the default solver tolerance.
func New() *Optimizer {
	return &Optimizer{Solver: linprog.Solver{Tolerance: linprog.DefaultTolerance}, Now: time.Now}
}

// Optimize builds and solves req. Non-optimal outcomes are returned as
// ErrInfeasible, ErrUnbounded or ErrSolverFault together with a Result that
// only carries the status.
func (o *Optimizer) Optimize(req Request) (*Result, error) {
	start := time.Now()
	p, err := Build(req)
	if err != nil {
		return nil, err
	}
	lpVariables.Set(float64(p.Model.NumVariables()))
	lpConstraints.Set(float64(p.Model.NumConstraints()))

	sol := solveModel(o.Solver, p.Model)
	status := sol.Status.String()
	solveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	solvesTotal.WithLabelValues(status).Inc()

	res := &Result{Status: sol.Status, Problem: p}
	switch sol.Status {
	case linprog.Optimal:
	case linprog.Infeasible:
		return res, fmt.Errorf("%w: %v", ErrInfeasible, sol.Err)
	case linprog.Unbounded:
		return res, fmt.Errorf("%w: %v", ErrUnbounded, sol.Err)
	default:
		return res, fmt.Errorf("%w: %s: %v", ErrSolverFault, sol.Status, sol.Err)
	}

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	res.Schedule = Summarize(p, sol, now())
	res.Schedule.ID = uuid.NewString()
	res.Flows = ExtractFlows(p, sol)
	return res, nil
}
