// rope.go - 2D Rotary Position Embeddings mit Aufloesungs-Extrapolation
//
// Dieses Modul enthaelt:
// - Embedding: cos/sin Tensoren fuer das 2D Token-Gitter
// - Get2DRotaryPosEmbed: Frequenzberechnung mit linear/NTK Skalierung
//
// Die Skalierungsfaktoren haengen beim Sampling von der aktuellen Zeit ab,
// deshalb berechnet die Pipeline das Embedding in jedem Schritt neu. Ein
// Cache ueber Schritte hinweg waere fachlich falsch, keine Optimierung.

package rope

import (
	"fmt"
	"math"

	"github.com/pdevine/tensor"
)

// theta is the classic rotary embedding frequency base.
const theta = 10000.0

// Embedding holds the rotary embedding pair for a 2D spatial token grid.
// Cos and Sin are each [gridH*gridW, headDim/2], row-major over the grid
// (height outer, width inner); the first headDim/4 lanes carry the height
// axis, the remaining headDim/4 the width axis. Both broadcast over the
// attention heads of the vector-field model.
type Embedding struct {
	Cos *tensor.Dense
	Sin *tensor.Dense

	GridH int
	GridW int
}

// Get2DRotaryPosEmbed builds rotary embeddings for a hTok x wTok token
// grid. ntkFactor stretches the frequency wavelengths (NTK-aware
// extrapolation), linearFactor compresses the positional index range; with
// both at 1.0 the unscaled baseline formula is reproduced exactly. The
// function is pure and safe to call every integration step.
func Get2DRotaryPosEmbed(headDim, hTok, wTok int, linearFactor, ntkFactor float64) (*Embedding, error) {
	if headDim < 8 || headDim%4 != 0 {
		return nil, fmt.Errorf("rope: head_dim must be a multiple of 4 and at least 8, got %d", headDim)
	}
	if hTok <= 0 {
		return nil, fmt.Errorf("rope: height_tokens must be positive, got %d", hTok)
	}
	if wTok <= 0 {
		return nil, fmt.Errorf("rope: width_tokens must be positive, got %d", wTok)
	}
	if !(linearFactor > 0) {
		return nil, fmt.Errorf("rope: linear_factor must be positive, got %v", linearFactor)
	}
	if !(ntkFactor > 0) {
		return nil, fmt.Errorf("rope: ntk_factor must be positive, got %v", ntkFactor)
	}

	// Pro Achse die Haelfte der Head-Dimension, davon die Haelfte
	// Frequenzen (cos/sin Paare)
	axisDim := headDim / 2
	half := headDim / 4

	invFreq := axisFrequencies(axisDim, ntkFactor)
	argsH := axisArgs(hTok, invFreq, linearFactor)
	argsW := axisArgs(wTok, invFreq, linearFactor)

	cos := make([]float32, hTok*wTok*axisDim)
	sin := make([]float32, hTok*wTok*axisDim)
	for y := 0; y < hTok; y++ {
		for x := 0; x < wTok; x++ {
			row := (y*wTok + x) * axisDim
			for i := 0; i < half; i++ {
				cos[row+i] = float32(math.Cos(argsH[y*half+i]))
				sin[row+i] = float32(math.Sin(argsH[y*half+i]))
				cos[row+half+i] = float32(math.Cos(argsW[x*half+i]))
				sin[row+half+i] = float32(math.Sin(argsW[x*half+i]))
			}
		}
	}

	return &Embedding{
		Cos:   tensor.New(tensor.WithShape(hTok*wTok, axisDim), tensor.WithBacking(cos)),
		Sin:   tensor.New(tensor.WithShape(hTok*wTok, axisDim), tensor.WithBacking(sin)),
		GridH: hTok,
		GridW: wTok,
	}, nil
}

// axisFrequencies builds the inverse-frequency vector for one spatial axis:
// invFreq[i] = 1 / theta'^(2i/dim) with theta' = theta * ntk^(dim/(dim-2)).
func axisFrequencies(dim int, ntkFactor float64) []float64 {
	scaledTheta := theta * math.Pow(ntkFactor, float64(dim)/float64(dim-2))
	invFreq := make([]float64, dim/2)
	for i := range invFreq {
		invFreq[i] = 1 / math.Pow(scaledTheta, float64(2*i)/float64(dim))
	}
	return invFreq
}

// axisArgs is the outer product of scaled positions and frequencies,
// flattened [positions x len(invFreq)].
func axisArgs(positions int, invFreq []float64, linearFactor float64) []float64 {
	args := make([]float64, positions*len(invFreq))
	for p := 0; p < positions; p++ {
		pos := float64(p) / linearFactor
		for i, f := range invFreq {
			args[p*len(invFreq)+i] = pos * f
		}
	}
	return args
}
