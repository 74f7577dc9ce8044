// noise.go - Seed-basierte Initialisierung der Latents
// Enthaelt initNoise (deterministisch) und randomSeed (crypto/rand).

package lumina

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/pdevine/tensor"
)

// initNoise draws the initial latent state from a seeded standard-normal
// generator. The same seed always yields the same tensor.
func initNoise(shape []int, seed int64) *tensor.Dense {
	n := 1
	for _, d := range shape {
		n *= d
	}

	r := rand.New(rand.NewSource(seed))
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(r.NormFloat64())
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// randomSeed draws a fresh seed from the OS entropy source.
func randomSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable on every supported
		// platform; keep the run deterministic instead of aborting.
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
}
