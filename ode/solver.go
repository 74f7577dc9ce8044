// solver.go - Integrationsverfahren fuer den Flow-Matching Sampler
//
// Dieses Modul enthaelt:
// - Solver: Enum fuer die drei Verfahren (euler, midpoint, rk4)
// - ParseSolver: String-Parsing mit Validierung
// - Evals: Anzahl Vektorfeld-Auswertungen pro Schritt

package ode

import "fmt"

// Solver selects the fixed-step integration rule used by Sample.
type Solver int

const (
	// Euler is the first-order rule: x <- x + dt*f(x, t).
	Euler Solver = iota
	// Midpoint is the second-order rule using the derivative at the
	// half-step predicted state.
	Midpoint
	// RK4 is the classical fourth-order Runge-Kutta rule with
	// weights (1, 2, 2, 1)/6.
	RK4
)

// ParseSolver maps a solver name to its Solver value.
func ParseSolver(s string) (Solver, error) {
	switch s {
	case "euler":
		return Euler, nil
	case "midpoint":
		return Midpoint, nil
	case "rk4":
		return RK4, nil
	}
	return 0, fmt.Errorf("ode: unknown solver %q (expected euler, midpoint or rk4)", s)
}

func (s Solver) String() string {
	switch s {
	case Euler:
		return "euler"
	case Midpoint:
		return "midpoint"
	case RK4:
		return "rk4"
	}
	return fmt.Sprintf("solver(%d)", int(s))
}

// Evals reports how many vector-field evaluations one step costs.
func (s Solver) Evals() int {
	switch s {
	case Midpoint:
		return 2
	case RK4:
		return 4
	}
	return 1
}
