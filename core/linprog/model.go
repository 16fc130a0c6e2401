package linprog

import (
	"fmt"
	"math"
)

// Sense is the relation of a constraint row to its right-hand side.
type Sense int

const (
	// LE is Σ a·x ≤ rhs.
	LE Sense = iota
	// GE is Σ a·x ≥ rhs.
	GE
	// EQ is Σ a·x = rhs.
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "?"
	}
}

// Var identifies a variable of a Model.
type Var int

// Term is one coefficient of a constraint row.
type Term struct {
	Var  Var
	Coef float64
}

type variable struct {
	name  string
	lower float64
	upper float64
	cost  float64
}

type constraint struct {
	name  string
	terms []Term
	sense Sense
	rhs   float64
}

// Model is a minimisation LP in general form: bounded variables, a linear
// objective and LE, GE or EQ rows. Bounds may be infinite.
type Model struct {
	vars []variable
	rows []constraint

	// ObjectiveConstant is added to the reported objective value.
	ObjectiveConstant float64
}

// NewModel returns an empty model.
func NewModel() *Model { return &Model{} }

// AddVariable registers a variable with bounds lower ≤ x ≤ upper and its
// objective coefficient.
func (m *Model) AddVariable(name string, lower, upper, cost float64) Var {
	m.vars = append(m.vars, variable{name: name, lower: lower, upper: upper, cost: cost})
	return Var(len(m.vars) - 1)
}

// SetCost replaces the objective coefficient of v.
func (m *Model) SetCost(v Var, cost float64) { m.vars[v].cost = cost }

// SetBounds replaces the bounds of v.
func (m *Model) SetBounds(v Var, lower, upper float64) {
	m.vars[v].lower = lower
	m.vars[v].upper = upper
}

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (lower, upper float64) {
	return m.vars[v].lower, m.vars[v].upper
}

// Cost returns the objective coefficient of v.
func (m *Model) Cost(v Var) float64 { return m.vars[v].cost }

// Name returns the name given to v.
func (m *Model) Name(v Var) string { return m.vars[v].name }

// AddConstraint appends a row. Terms referring to the same variable are summed.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	t := make([]Term, len(terms))
	copy(t, terms)
	m.rows = append(m.rows, constraint{name: name, terms: t, sense: sense, rhs: rhs})
}

// NumVariables returns the number of variables.
func (m *Model) NumVariables() int { return len(m.vars) }

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int { return len(m.rows) }

// Validate checks bounds, coefficients and variable references.
func (m *Model) Validate() error {
	for i, v := range m.vars {
		if math.IsNaN(v.lower) || math.IsNaN(v.upper) || math.IsNaN(v.cost) || math.IsInf(v.cost, 0) {
			return fmt.Errorf("variable %d (%s): invalid number", i, v.name)
		}
		if v.lower > v.upper {
			return fmt.Errorf("%w: variable %s has lower %g > upper %g", ErrBadBounds, v.name, v.lower, v.upper)
		}
		if math.IsInf(v.lower, 1) || math.IsInf(v.upper, -1) {
			return fmt.Errorf("%w: variable %s", ErrBadBounds, v.name)
		}
	}
	for _, r := range m.rows {
		if math.IsNaN(r.rhs) || math.IsInf(r.rhs, 0) {
			return fmt.Errorf("row %s: invalid right-hand side", r.name)
		}
		for _, t := range r.terms {
			if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
				return fmt.Errorf("row %s: unknown variable %d", r.name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("row %s: invalid coefficient", r.name)
			}
		}
	}
	return nil
}

// Evaluate returns the objective value at x, including ObjectiveConstant.
func (m *Model) Evaluate(x []float64) float64 {
	obj := m.ObjectiveConstant
	for i, v := range m.vars {
		obj += v.cost * x[i]
	}
	return obj
}

// RowActivity returns Σ a·x for row i.
func (m *Model) RowActivity(i int, x []float64) float64 {
	var s float64
	for _, t := range m.rows[i].terms {
		s += t.Coef * x[t.Var]
	}
	return s
}
