package linprog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

var inf = math.Inf(1)

func TestSolveTextbookMaximisation(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", 0, inf, -1)
	y := m.AddVariable("y", 0, inf, -1)
	m.AddConstraint("c1", []Term{{x, 1}, {y, 2}}, LE, 4)
	m.AddConstraint("c2", []Term{{x, 3}, {y, 1}}, LE, 6)

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 1.6, sol.Value(x), 1e-6)
	assert.InDelta(t, 1.2, sol.Value(y), 1e-6)
	assert.InDelta(t, -2.8, sol.Objective, 1e-6)
}

func TestSolveShiftedAndUpperBounds(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", 3, inf, 1)
	y := m.AddVariable("y", 0, 1, 0)
	m.AddConstraint("sum", []Term{{x, 1}, {y, 1}}, GE, 5)
	m.ObjectiveConstant = 10

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 4, sol.Value(x), 1e-6)
	assert.InDelta(t, 1, sol.Value(y), 1e-6)
	assert.InDelta(t, 14, sol.Objective, 1e-6)
}

func TestSolveUpperOnlyVariable(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", math.Inf(-1), 10, -1)
	y := m.AddVariable("y", 0, 5, 0)
	m.AddConstraint("eq", []Term{{x, 1}, {y, 1}}, EQ, 12)

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 10, sol.Value(x), 1e-6)
	assert.InDelta(t, 2, sol.Value(y), 1e-6)
}

func TestSolveFreeVariable(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", math.Inf(-1), inf, 1)
	m.AddConstraint("floor", []Term{{x, 1}}, GE, -2)

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, -2, sol.Value(x), 1e-6)
}

func TestSolveInfeasible(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", 0, 1, 1)
	m.AddConstraint("too_high", []Term{{x, 1}}, GE, 2)

	sol := Solve(m)
	assert.Equal(t, Infeasible, sol.Status)
	assert.Error(t, sol.Err)
	assert.Nil(t, sol.X)
}

func TestSolveEmptyRowInfeasible(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", 0, 1, 1)
	m.AddConstraint("cancel", []Term{{x, 1}, {x, -1}}, EQ, 3)

	sol := Solve(m)
	assert.Equal(t, Infeasible, sol.Status)
}

func TestSolveUnboundedVariableOutsideRows(t *testing.T) {
	m := NewModel()
	x := m.AddVariable("x", 0, inf, -1)
	y := m.AddVariable("y", 0, inf, 1)
	m.AddConstraint("y", []Term{{y, 1}}, GE, 1)
	_ = x

	sol := Solve(m)
	assert.Equal(t, Unbounded, sol.Status)
}

func TestSolveVariablesOutsideRowsTakeCheapestBound(t *testing.T) {
	m := NewModel()
	a := m.AddVariable("a", 2, 5, 0)
	b := m.AddVariable("b", 2, 5, -1)
	c := m.AddVariable("c", 0, inf, 1)
	m.AddConstraint("c", []Term{{c, 1}}, GE, 1)

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 2, sol.Value(a), 1e-9)
	assert.InDelta(t, 5, sol.Value(b), 1e-9)
	assert.InDelta(t, 1, sol.Value(c), 1e-6)
}

func TestSolveEmptyModel(t *testing.T) {
	assert.Equal(t, NotSolved, Solve(NewModel()).Status)
	assert.Equal(t, NotSolved, Solve(nil).Status)
}

func TestSolveRejectsInvalidBounds(t *testing.T) {
	m := NewModel()
	m.AddVariable("x", 2, 1, 0)
	sol := Solve(m)
	assert.Equal(t, SolverError, sol.Status)
	assert.ErrorIs(t, sol.Err, ErrBadBounds)
}

func TestSolveMapsSolverErrors(t *testing.T) {
	orig := lpSolve
	defer func() { lpSolve = orig }()

	m := NewModel()
	x := m.AddVariable("x", 0, 10, 1)
	m.AddConstraint("min", []Term{{x, 1}}, GE, 1)

	lpSolve = func(c []float64, A mat.Matrix, b []float64, tol float64, initial []int) (float64, []float64, error) {
		return 0, nil, lp.ErrSingular
	}
	if sol := Solve(m); sol.Status != SolverError {
		t.Fatalf("expected solver error, got %v", sol.Status)
	}

	lpSolve = func(c []float64, A mat.Matrix, b []float64, tol float64, initial []int) (float64, []float64, error) {
		panic("boom")
	}
	sol := Solve(m)
	if sol.Status != SolverError {
		t.Fatalf("expected recovered panic to map to solver error, got %v", sol.Status)
	}
	assert.Contains(t, sol.Err.Error(), "boom")

	lpSolve = func(c []float64, A mat.Matrix, b []float64, tol float64, initial []int) (float64, []float64, error) {
		return 0, nil, lp.ErrUnbounded
	}
	assert.Equal(t, Unbounded, Solve(m).Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "optimal", Optimal.String())
	assert.Equal(t, "infeasible", Infeasible.String())
	assert.Equal(t, ">=", GE.String())
}

func TestSolveRetriesFromArtificialBasis(t *testing.T) {
	orig := lpSolve
	defer func() { lpSolve = orig }()
	var calls int
	lpSolve = func(c []float64, A mat.Matrix, b []float64, tol float64, initial []int) (float64, []float64, error) {
		calls++
		if initial == nil {
			return 0, nil, errors.New("lp: error finding feasible basis: matrix singular or near-singular with condition number +Inf")
		}
		return lp.Simplex(c, A, b, tol, initial)
	}

	m := NewModel()
	x := m.AddVariable("x", 0, inf, -1)
	y := m.AddVariable("y", 0, inf, -1)
	m.AddConstraint("c1", []Term{{x, 1}, {y, 2}}, LE, 4)
	m.AddConstraint("c2", []Term{{x, 3}, {y, 1}}, LE, 6)
	m.AddConstraint("floor", []Term{{x, 1}}, GE, 0.5)

	sol := Solve(m)
	require.Equal(t, Optimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 1.6, sol.Value(x), 1e-6)
	assert.InDelta(t, 1.2, sol.Value(y), 1e-6)
	assert.Equal(t, 2, calls)

	bad := NewModel()
	z := bad.AddVariable("z", 0, 1, 1)
	bad.AddConstraint("too_high", []Term{{z, 1}}, GE, 2)
	assert.Equal(t, Infeasible, Solve(bad).Status)
}
