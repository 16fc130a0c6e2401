// Package linprog wraps gonum's simplex implementation behind a general-form
// model: variables with finite or infinite bounds and LE, GE or EQ rows.
//
// Models are converted directly to the standard form expected by
// gonum.org/v1/gonum/optimize/convex/lp.Simplex:
//
//	m := linprog.NewModel()
//	x := m.AddVariable("x", 0, 10, -1)
//	m.AddConstraint("cap", []linprog.Term{{Var: x, Coef: 1}}, linprog.LE, 4)
//	sol := linprog.Solve(m)
//	if sol.Status == linprog.Optimal {
//		fmt.Println(sol.Value(x))
//	}
package linprog
