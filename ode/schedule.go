// schedule.go - Zeitschritt-Schedule fuer das Reverse-Time Sampling
//
// Dieses Modul enthaelt:
// - newSchedule: gewarpte Zeitpunkte von 1 (Rauschen) nach 0 (Daten)
// - timeShift: die Warp-Funktion t/(t + a - a*t)

package ode

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// timeShift warps a schedule point. shift = 1 + t_shift; shift = 1 is the
// identity, larger values pull interior points toward 0 so more steps land
// where the vector field changes fastest.
func timeShift(t, shift float64) float64 {
	return t / (t + shift - shift*t)
}

// newSchedule builds the sigma sequence: numSteps+1 points from 1 down to
// exactly 0, each warped by timeShift. Interval i runs from sigmas[i] to
// sigmas[i+1].
func newSchedule(numSteps, tShift int) ([]float64, error) {
	if numSteps <= 0 {
		return nil, fmt.Errorf("ode: num_inference_steps must be positive, got %d", numSteps)
	}
	if tShift < 0 {
		return nil, fmt.Errorf("ode: t_shift must not be negative, got %d", tShift)
	}

	sigmas := make([]float64, numSteps+1)
	floats.Span(sigmas, 1, 0)

	shift := float64(1 + tShift)
	for i, t := range sigmas {
		sigmas[i] = timeShift(t, shift)
	}
	return sigmas, nil
}
