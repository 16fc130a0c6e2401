// Package optimizer builds the hourly battery scheduling LP, solves it with
// core/linprog and turns the solution into a model.Schedule.
//
// Each period t has grid import g, grid export e, charge ch, discharge dh and
// end-of-period state of charge soc. The objective minimises
//
//	Σ (g·pb + dh·bep − e·ps − ch·bep)/1000 − w·soc[N-1]
//
// subject to the energy balance d + ch/ηc + e = g + s + dh·ηd, the SoC
// recursion, the flow caps (scaled for the elapsed part of period 0), the
// minimum SoC and a terminal SoC no lower than the initial one.
package optimizer
