// integrator.go - ODE-Integrator fuer Flow-Matching Sampling
//
// Dieses Modul enthaelt:
// - Func: das injizierte Vektorfeld (explizite Komposition statt Patching)
// - ODE: Integrator mit Schedule und Solver
// - Sample: die Denoising-Schleife von t=1 (Rauschen) nach t=0 (Daten)

package ode

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pdevine/tensor"
)

// Func is the vector field driven by the integrator: given the current
// state and time it returns the predicted velocity, shape-preserving.
// It is injected as a dependency so concurrent sampling runs never share
// mutable pipeline state.
type Func func(x *tensor.Dense, t float64) (*tensor.Dense, error)

// ErrUnstable reports NaN or Inf in the state after a step. This indicates
// integration instability (for example a too-large t_shift or an
// incompatible resolution/embedding scale) and is never clamped away.
var ErrUnstable = errors.New("non-finite state after step")

// ODE drives the reverse-time sampling trajectory across a fixed timestep
// schedule. One Sample call owns its state tensor for the whole run.
type ODE struct {
	sigmas []float64
	solver Solver

	// Progress, if set, is called with (0, steps) before the loop and
	// (i+1, steps) after every completed step.
	Progress func(step, total int)
}

// New validates the configuration and precomputes the warped schedule.
func New(numInferenceSteps int, solver Solver, tShift int) (*ODE, error) {
	if solver < Euler || solver > RK4 {
		return nil, fmt.Errorf("ode: invalid solver %d", int(solver))
	}
	sigmas, err := newSchedule(numInferenceSteps, tShift)
	if err != nil {
		return nil, err
	}
	return &ODE{sigmas: sigmas, solver: solver}, nil
}

// Steps returns the number of integration steps.
func (o *ODE) Steps() int { return len(o.sigmas) - 1 }

// Solver returns the configured integration rule.
func (o *ODE) Solver() Solver { return o.solver }

// Timesteps returns the times at which each step starts, monotonically
// decreasing. The terminal time 0 is not included.
func (o *ODE) Timesteps() []float64 {
	ts := make([]float64, o.Steps())
	copy(ts, o.sigmas[:o.Steps()])
	return ts
}

// Sample integrates the vector field from the initial noise state down the
// schedule and returns the final state. x is mutated in place and owned by
// Sample until it returns. Errors from fn abort the run immediately,
// annotated with the step index and current time; no partial result is
// returned. Given identical x, schedule, solver and fn the result is
// bit-for-bit reproducible.
func (o *ODE) Sample(ctx context.Context, x *tensor.Dense, fn Func) (*tensor.Dense, error) {
	if x == nil {
		return nil, errors.New("ode: nil initial state")
	}
	if fn == nil {
		return nil, errors.New("ode: nil vector field")
	}
	xd, ok := x.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("ode: state must be float32, got %T", x.Data())
	}

	steps := o.Steps()
	if o.Progress != nil {
		o.Progress(0, steps)
	}
	for i := 0; i < steps; i++ {
		// Abbruch nur zwischen Schritten; die k-Auswertungen eines
		// Schritts werden nie aufgetrennt.
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		t := o.sigmas[i]
		dt := o.sigmas[i+1] - t
		if err := o.step(x, xd, fn, t, dt); err != nil {
			return nil, fmt.Errorf("ode: step %d/%d (t=%.6f): %w", i+1, steps, t, err)
		}
		if !finite(xd) {
			return nil, fmt.Errorf("ode: step %d/%d (t=%.6f): %w", i+1, steps, t, ErrUnstable)
		}

		if o.Progress != nil {
			o.Progress(i+1, steps)
		}
	}
	return x, nil
}

// step advances the state by one interval according to the solver.
func (o *ODE) step(x *tensor.Dense, xd []float32, fn Func, t, dt float64) error {
	switch o.solver {
	case Euler:
		k1, err := o.eval(fn, x, t, len(xd))
		if err != nil {
			return err
		}
		axpy(float32(dt), k1, xd)

	case Midpoint:
		k1, err := o.eval(fn, x, t, len(xd))
		if err != nil {
			return err
		}
		mid := x.Clone().(*tensor.Dense)
		axpy(float32(dt/2), k1, mid.Data().([]float32))
		k2, err := o.eval(fn, mid, t+dt/2, len(xd))
		if err != nil {
			return err
		}
		axpy(float32(dt), k2, xd)

	case RK4:
		k1, err := o.eval(fn, x, t, len(xd))
		if err != nil {
			return err
		}
		x2 := x.Clone().(*tensor.Dense)
		axpy(float32(dt/2), k1, x2.Data().([]float32))
		k2, err := o.eval(fn, x2, t+dt/2, len(xd))
		if err != nil {
			return err
		}
		x3 := x.Clone().(*tensor.Dense)
		axpy(float32(dt/2), k2, x3.Data().([]float32))
		k3, err := o.eval(fn, x3, t+dt/2, len(xd))
		if err != nil {
			return err
		}
		x4 := x.Clone().(*tensor.Dense)
		axpy(float32(dt), k3, x4.Data().([]float32))
		k4, err := o.eval(fn, x4, t+dt, len(xd))
		if err != nil {
			return err
		}
		// Klassische RK4-Gewichte (1, 2, 2, 1)/6
		axpy(float32(dt/6), k1, xd)
		axpy(float32(dt/3), k2, xd)
		axpy(float32(dt/3), k3, xd)
		axpy(float32(dt/6), k4, xd)
	}
	return nil
}

// eval runs the vector field and checks that it preserved the state shape.
func (o *ODE) eval(fn Func, x *tensor.Dense, t float64, n int) ([]float32, error) {
	v, err := fn(x, t)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("vector field returned nil tensor")
	}
	vd, ok := v.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("vector field returned %T data, expected []float32", v.Data())
	}
	if len(vd) != n {
		return nil, fmt.Errorf("vector field changed state size: got %d elements, expected %d", len(vd), n)
	}
	return vd, nil
}

// axpy akkumuliert y += a*x. Die k-Slices werden spaeter im Schritt noch
// gebraucht, deshalb keine In-Place-Skalierung via vecf32.
func axpy(a float32, x, y []float32) {
	for i, v := range x {
		y[i] += a * v
	}
}

func finite(s []float32) bool {
	for _, v := range s {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
