package linprog

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is passed to the simplex routine.
const DefaultTolerance = 1e-7

// feasTol is the slack allowed when checking rows without structural terms.
const feasTol = 1e-9

// ErrBadBounds is returned for variables whose bounds are empty.
var ErrBadBounds = errors.New("invalid variable bounds")

// Status is the outcome of a solve.
type Status int

const (
	NotSolved Status = iota
	Optimal
	Infeasible
	Unbounded
	SolverError
)

func (s Status) String() string {
	switch s {
	case NotSolved:
		return "not_solved"
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case SolverError:
		return "solver_error"
	default:
		return "unknown"
	}
}

// Solution holds the result of Solve. X and Objective are only meaningful
// when Status is Optimal.
type Solution struct {
	Status    Status
	X         []float64
	Objective float64
	// Err carries the solver detail for non-optimal outcomes.
	Err error
}

// Value returns the value of v in an optimal solution.
func (s Solution) Value(v Var) float64 {
	if int(v) >= len(s.X) {
		return 0
	}
	return s.X[v]
}

// lpSolve points to the simplex routine. Tests replace it to simulate
// solver failures.
var lpSolve = lp.Simplex

// Solver converts a Model to standard form and runs the simplex method.
type Solver struct {
	Tolerance float64
}

// Solve runs m with the default tolerance.
func Solve(m *Model) Solution {
	return Solver{Tolerance: DefaultTolerance}.Solve(m)
}

// colRef maps a model variable to standard-form columns:
// x = offset + sign·col[pos] − col[neg].
type colRef struct {
	offset float64
	sign   float64
	pos    int
	neg    int
}

type entry struct {
	row, col int
	val      float64
}

// standard is min cᵀy s.t. Ay = b, y ≥ 0 in triplet form.
type standard struct {
	refs     []colRef
	cost     []float64
	entries  []entry
	b        []float64
	constant float64
}

func (st *standard) newCol(cost float64) int {
	st.cost = append(st.cost, cost)
	return len(st.cost) - 1
}

func (st *standard) newRow(rhs float64) int {
	st.b = append(st.b, rhs)
	return len(st.b) - 1
}

// Solve converts m and solves it. It never panics.
func (s Solver) Solve(m *Model) (sol Solution) {
	if m == nil || len(m.vars) == 0 {
		return Solution{Status: NotSolved, Err: errors.New("empty model")}
	}
	if err := m.Validate(); err != nil {
		return Solution{Status: SolverError, Err: err}
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	st, status, err := toStandard(m)
	if status != NotSolved {
		return Solution{Status: status, Err: err}
	}
	y, status, err := st.solve(tol)
	if status != Optimal {
		return Solution{Status: status, Err: err}
	}

	x := make([]float64, len(m.vars))
	for i, r := range st.refs {
		v := r.offset
		if r.pos >= 0 {
			v += r.sign * y[r.pos]
		}
		if r.neg >= 0 {
			v -= y[r.neg]
		}
		x[i] = v
	}
	return Solution{Status: Optimal, X: x, Objective: m.Evaluate(x)}
}

// toStandard builds the standard form. A status other than NotSolved means
// the outcome was decided without running the simplex method.
func toStandard(m *Model) (*standard, Status, error) {
	used := make([]bool, len(m.vars))
	for _, r := range m.rows {
		for _, t := range r.terms {
			if t.Coef != 0 {
				used[t.Var] = true
			}
		}
	}

	st := &standard{refs: make([]colRef, len(m.vars))}
	for i, v := range m.vars {
		loFinite := !math.IsInf(v.lower, -1)
		hiFinite := !math.IsInf(v.upper, 1)
		ref := colRef{sign: 1, pos: -1, neg: -1}
		switch {
		case !used[i]:
			// Variables outside every row sit at the bound favoured by cost.
			switch {
			case v.cost > 0 && loFinite:
				ref.offset = v.lower
			case v.cost < 0 && hiFinite:
				ref.offset = v.upper
			case v.cost == 0:
				ref.offset = clampZero(v.lower, v.upper)
			default:
				return nil, Unbounded, fmt.Errorf("variable %s is unbounded in the objective", v.name)
			}
		case loFinite:
			ref.offset = v.lower
			ref.pos = st.newCol(v.cost)
			if hiFinite {
				row := st.newRow(v.upper - v.lower)
				slack := st.newCol(0)
				st.entries = append(st.entries, entry{row, ref.pos, 1}, entry{row, slack, 1})
			}
		case hiFinite:
			ref.offset = v.upper
			ref.sign = -1
			ref.pos = st.newCol(-v.cost)
		default:
			ref.pos = st.newCol(v.cost)
			ref.neg = st.newCol(-v.cost)
		}
		st.constant += v.cost * ref.offset
		st.refs[i] = ref
	}

	for _, r := range m.rows {
		rhs := r.rhs
		coefs := make(map[int]float64)
		for _, t := range r.terms {
			if t.Coef == 0 {
				continue
			}
			ref := st.refs[t.Var]
			rhs -= t.Coef * ref.offset
			if ref.pos >= 0 {
				coefs[ref.pos] += t.Coef * ref.sign
			}
			if ref.neg >= 0 {
				coefs[ref.neg] -= t.Coef
			}
		}
		empty := true
		for _, c := range coefs {
			if c != 0 {
				empty = false
				break
			}
		}
		if empty {
			if !trivialFeasible(r.sense, rhs) {
				return nil, Infeasible, fmt.Errorf("row %s: 0 %s %g", r.name, r.sense, rhs)
			}
			continue
		}
		row := st.newRow(rhs)
		for col, c := range coefs {
			if c != 0 {
				st.entries = append(st.entries, entry{row, col, c})
			}
		}
		switch r.sense {
		case LE:
			st.entries = append(st.entries, entry{row, st.newCol(0), 1})
		case GE:
			st.entries = append(st.entries, entry{row, st.newCol(0), -1})
		}
	}
	return st, NotSolved, nil
}

func clampZero(lo, hi float64) float64 {
	switch {
	case lo > 0:
		return lo
	case hi < 0:
		return hi
	default:
		return 0
	}
}

func trivialFeasible(sense Sense, rhs float64) bool {
	switch sense {
	case LE:
		return rhs >= -feasTol
	case GE:
		return rhs <= feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}

// solve drops empty columns, runs the simplex method and returns the values
// of every standard-form column.
func (st *standard) solve(tol float64) (y []float64, status Status, err error) {
	nCols := len(st.cost)
	y = make([]float64, nCols)
	if len(st.b) == 0 {
		for _, c := range st.cost {
			if c < 0 {
				return nil, Unbounded, errors.New("unconstrained column with negative cost")
			}
		}
		return y, Optimal, nil
	}

	nonzero := make([]bool, nCols)
	for _, e := range st.entries {
		nonzero[e.col] = true
	}
	index := make([]int, nCols)
	var keep []int
	for j := range nonzero {
		if !nonzero[j] {
			if st.cost[j] < 0 {
				return nil, Unbounded, errors.New("unconstrained column with negative cost")
			}
			index[j] = -1
			continue
		}
		index[j] = len(keep)
		keep = append(keep, j)
	}

	rows, cols := len(st.b), len(keep)
	if rows > cols {
		return nil, SolverError, fmt.Errorf("more rows (%d) than columns (%d)", rows, cols)
	}
	A := mat.NewDense(rows, cols, nil)
	for _, e := range st.entries {
		A.Set(e.row, index[e.col], A.At(e.row, index[e.col])+e.val)
	}
	c := make([]float64, cols)
	for k, j := range keep {
		c[k] = st.cost[j]
	}
	b := make([]float64, rows)
	copy(b, st.b)

	defer func() {
		if r := recover(); r != nil {
			y, status, err = nil, SolverError, fmt.Errorf("simplex panic: %v", r)
		}
	}()
	x, status, err := simplex(c, A, b, tol)
	if status != Optimal {
		return nil, status, err
	}
	for k, j := range keep {
		y[j] = x[k]
	}
	return y, Optimal, nil
}

// penaltyScales are tried in order for the artificial columns of the
// fallback solve.
var penaltyScales = []float64{1e4, 1e8}

// simplex runs lpSolve with its own initial basis search first. That search
// can stall on a singular basis for degenerate but feasible problems, so any
// outcome other than Optimal or Unbounded is settled by solving again from an
// identity basis of penalised artificial columns.
func simplex(c []float64, A *mat.Dense, b []float64, tol float64) ([]float64, Status, error) {
	_, x, err := lpSolve(c, A, b, tol, nil)
	switch {
	case err == nil:
		return x, Optimal, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, Unbounded, err
	}
	first := err

	maxCost := 0.0
	for _, v := range c {
		maxCost = math.Max(maxCost, math.Abs(v))
	}
	for _, scale := range penaltyScales {
		x, art, err := withArtificials(c, A, b, tol, scale*(1+maxCost))
		if err != nil {
			if status := classify(err); status != SolverError {
				return nil, status, err
			}
			return nil, SolverError, fmt.Errorf("%w (retry: %v)", first, err)
		}
		if feasible(art, b) {
			return x, Optimal, nil
		}
		// Positive artificials mean either no feasible point exists or the
		// penalty was too small. A pure phase one tells them apart.
		_, art, err = withArtificials(make([]float64, len(c)), A, b, tol, 1)
		if err != nil {
			return nil, SolverError, fmt.Errorf("%w (phase one: %v)", first, err)
		}
		if !feasible(art, b) {
			return nil, Infeasible, lp.ErrInfeasible
		}
	}
	return nil, SolverError, fmt.Errorf("%w (penalty too small)", first)
}

// withArtificials solves min cᵀx + penalty·Σa s.t. ±A x + a = |b| from the
// basis made of the artificial columns a. It returns x and a separately.
func withArtificials(c []float64, A *mat.Dense, b []float64, tol, penalty float64) ([]float64, []float64, error) {
	rows, cols := A.Dims()
	aug := mat.NewDense(rows, cols+rows, nil)
	rhs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sign := 1.0
		if b[i] < 0 {
			sign = -1
		}
		for j := 0; j < cols; j++ {
			if v := A.At(i, j); v != 0 {
				aug.Set(i, j, sign*v)
			}
		}
		aug.Set(i, cols+i, 1)
		rhs[i] = sign * b[i]
	}
	cost := make([]float64, cols+rows)
	copy(cost, c)
	basis := make([]int, rows)
	for i := range basis {
		cost[cols+i] = penalty
		basis[i] = cols + i
	}
	_, x, err := lpSolve(cost, aug, rhs, tol, basis)
	if err != nil {
		return nil, nil, err
	}
	return x[:cols], x[cols:], nil
}

// feasible reports whether every artificial value is zero within a tolerance
// relative to the magnitude of b.
func feasible(art, b []float64) bool {
	scale := 1.0
	for _, v := range b {
		scale = math.Max(scale, math.Abs(v))
	}
	for _, v := range art {
		if v > 1e-7*scale {
			return false
		}
	}
	return true
}

func classify(err error) Status {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return Unbounded
	default:
		return SolverError
	}
}
