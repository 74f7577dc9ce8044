// integrator_test.go - Tests fuer den ODE-Integrator
//
// Prueft No-Op-Integration, Fehlerordnung der Solver, Determinismus,
// Auswertungszaehlung, Fehlerpropagation und NaN-Erkennung.

package ode

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/require"
)

func newState(data ...float32) *tensor.Dense {
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(len(data)), tensor.WithBacking(backing))
}

// zeroField ist das konstante Vektorfeld f(x,t) = 0
func zeroField(x *tensor.Dense, t float64) (*tensor.Dense, error) {
	return tensor.New(
		tensor.WithShape(x.Shape()...),
		tensor.WithBacking(make([]float32, len(x.Data().([]float32)))),
	), nil
}

// negField ist das lineare Vektorfeld f(x,t) = -x
func negField(x *tensor.Dense, t float64) (*tensor.Dense, error) {
	v := x.Clone().(*tensor.Dense)
	vd := v.Data().([]float32)
	for i := range vd {
		vd[i] = -vd[i]
	}
	return v, nil
}

func TestSampleZeroFieldIdentity(t *testing.T) {
	for _, solver := range []Solver{Euler, Midpoint, RK4} {
		t.Run(solver.String(), func(t *testing.T) {
			o, err := New(1, solver, 4)
			require.NoError(t, err)

			in := []float32{0.5, -1.25, 3}
			out, err := o.Sample(context.Background(), newState(in...), zeroField)
			require.NoError(t, err)

			// Exakt, nicht nur approximativ
			require.Equal(t, in, out.Data().([]float32))
		})
	}
}

func TestSolverErrorOrdering(t *testing.T) {
	// Fuer f(x,t) = -x von t=1 nach t=0 ist die exakte Loesung x0*e.
	// RK4 ist hier fast exakt, Midpoint genauer als Euler.
	x0 := []float32{1, -2, 0.5}
	exact := make([]float64, len(x0))
	for i, v := range x0 {
		exact[i] = float64(v) * math.E
	}

	maxErr := func(solver Solver) float64 {
		o, err := New(4, solver, 0)
		require.NoError(t, err)
		out, err := o.Sample(context.Background(), newState(x0...), negField)
		require.NoError(t, err)

		var worst float64
		for i, v := range out.Data().([]float32) {
			if d := math.Abs(float64(v) - exact[i]); d > worst {
				worst = d
			}
		}
		return worst
	}

	errEuler := maxErr(Euler)
	errMidpoint := maxErr(Midpoint)
	errRK4 := maxErr(RK4)

	require.LessOrEqual(t, errRK4, errMidpoint, "RK4 muss mindestens so genau wie Midpoint sein")
	require.LessOrEqual(t, errMidpoint, errEuler, "Midpoint muss mindestens so genau wie Euler sein")
	require.LessOrEqual(t, errRK4, 1e-3, "RK4 auf linearem Feld fast exakt")
}

func TestSampleDeterminism(t *testing.T) {
	field := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
		v := x.Clone().(*tensor.Dense)
		vd := v.Data().([]float32)
		for i := range vd {
			vd[i] = -vd[i] + float32(math.Sin(tm))
		}
		return v, nil
	}

	run := func() []float32 {
		o, err := New(6, Midpoint, 3)
		require.NoError(t, err)
		out, err := o.Sample(context.Background(), newState(0.25, -4, 1e-3, 7), field)
		require.NoError(t, err)
		return out.Data().([]float32)
	}

	require.Equal(t, run(), run(), "identische Laeufe muessen bit-identisch sein")
}

func TestSampleEvalCounts(t *testing.T) {
	tests := []struct {
		solver Solver
		steps  int
		want   int
	}{
		{Euler, 3, 3},
		{Midpoint, 3, 6},
		{RK4, 3, 12},
	}
	for _, tt := range tests {
		t.Run(tt.solver.String(), func(t *testing.T) {
			var calls int
			counting := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
				calls++
				return zeroField(x, tm)
			}

			o, err := New(tt.steps, tt.solver, 4)
			require.NoError(t, err)
			_, err = o.Sample(context.Background(), newState(1, 2), counting)
			require.NoError(t, err)

			require.Equal(t, tt.want, calls)
			require.Equal(t, tt.want, tt.steps*tt.solver.Evals())
		})
	}
}

func TestSampleFieldErrorAborts(t *testing.T) {
	sentinel := errors.New("transformer kaputt")
	var calls int
	failing := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
		calls++
		if calls == 2 {
			return nil, sentinel
		}
		return zeroField(x, tm)
	}

	o, err := New(4, Euler, 0)
	require.NoError(t, err)
	out, err := o.Sample(context.Background(), newState(1), failing)

	require.Nil(t, out, "kein Teilergebnis bei Fehler")
	require.ErrorIs(t, err, sentinel)
	require.Contains(t, err.Error(), "step 2", "Fehler muss Schrittindex nennen")
	require.Contains(t, err.Error(), "t=", "Fehler muss Zeitpunkt nennen")
}

func TestSampleDetectsInstability(t *testing.T) {
	nanField := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
		v, _ := zeroField(x, tm)
		v.Data().([]float32)[0] = float32(math.NaN())
		return v, nil
	}

	o, err := New(3, Euler, 0)
	require.NoError(t, err)
	out, err := o.Sample(context.Background(), newState(1, 2), nanField)

	require.Nil(t, out)
	require.ErrorIs(t, err, ErrUnstable)
	require.Contains(t, err.Error(), "step 1")
}

func TestSampleShapeMismatch(t *testing.T) {
	shrinking := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
		return newState(1), nil
	}

	o, err := New(2, Euler, 0)
	require.NoError(t, err)
	_, err = o.Sample(context.Background(), newState(1, 2, 3), shrinking)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "changed state size"))
}

func TestSampleContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	counting := func(x *tensor.Dense, tm float64) (*tensor.Dense, error) {
		calls++
		return zeroField(x, tm)
	}

	o, err := New(4, RK4, 2)
	require.NoError(t, err)
	_, err = o.Sample(ctx, newState(1), counting)

	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls, "keine Auswertung nach Abbruch")
}

func TestSampleProgress(t *testing.T) {
	o, err := New(3, Euler, 1)
	require.NoError(t, err)

	var got []int
	o.Progress = func(step, total int) {
		require.Equal(t, 3, total)
		got = append(got, step)
	}

	_, err = o.Sample(context.Background(), newState(1), zeroField)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestParseSolver(t *testing.T) {
	tests := []struct {
		in      string
		want    Solver
		wantErr bool
	}{
		{"euler", Euler, false},
		{"midpoint", Midpoint, false},
		{"rk4", RK4, false},
		{"heun", 0, true},
		{"", 0, true},
		{"EULER", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSolver(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSolver(%q) erwartet Fehler", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSolver(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSolver(%q) = %v, erwartet %v", tt.in, got, tt.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, Euler, 4); err == nil {
		t.Error("New mit 0 Schritten erwartet Fehler")
	}
	if _, err := New(10, Solver(99), 4); err == nil {
		t.Error("New mit ungueltigem Solver erwartet Fehler")
	}
	if _, err := New(10, Euler, -2); err == nil {
		t.Error("New mit negativem t_shift erwartet Fehler")
	}
}
