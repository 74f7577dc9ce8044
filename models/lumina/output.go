// output.go - Ergebniscontainer eines Sampling-Laufs
//
// Dieses Modul enthaelt:
// - Output mit den finalen Latents und dem verwendeten Seed
// - Samples: das generische Latent-Record fuer nachgelagerte Stufen
// - EncodeLatents/DecodeLatents: kompakter float16-Export

package lumina

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

// latentMagic kennzeichnet den float16-Latent-Export ("LMF1").
const latentMagic uint32 = 0x4c4d4631

// Output exposes the batch of final latent tensors of one sampling run,
// shape [batch, channels, height/8, width/8].
type Output struct {
	Latents *tensor.Dense
	Seed    int64
}

// Samples returns the generic latent record consumed by downstream
// decoders.
func (o *Output) Samples() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{"samples": o.Latents}
}

// EncodeLatents writes the latents as little-endian float16, prefixed with
// magic, rank and dimensions. Float16 halves the payload at a precision
// that is ample for VAE input.
func (o *Output) EncodeLatents(w io.Writer) error {
	if o.Latents == nil {
		return fmt.Errorf("lumina: no latents to encode")
	}
	data, ok := o.Latents.Data().([]float32)
	if !ok {
		return fmt.Errorf("lumina: latents must be float32, got %T", o.Latents.Data())
	}

	shape := o.Latents.Shape()
	header := make([]uint32, 0, 2+len(shape))
	header = append(header, latentMagic, uint32(len(shape)))
	for _, d := range shape {
		header = append(header, uint32(d))
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("lumina: encode latents header: %w", err)
	}

	bits := make([]uint16, len(data))
	for i, v := range data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	if err := binary.Write(w, binary.LittleEndian, bits); err != nil {
		return fmt.Errorf("lumina: encode latents data: %w", err)
	}
	return nil
}

// DecodeLatents reads a float16 latent export back into a float32 tensor.
func DecodeLatents(r io.Reader) (*tensor.Dense, error) {
	var magic, rank uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("lumina: decode latents header: %w", err)
	}
	if magic != latentMagic {
		return nil, fmt.Errorf("lumina: bad latent magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("lumina: decode latents rank: %w", err)
	}
	if rank == 0 || rank > 8 {
		return nil, fmt.Errorf("lumina: implausible latent rank %d", rank)
	}

	dims := make([]uint32, rank)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return nil, fmt.Errorf("lumina: decode latent dims: %w", err)
	}
	shape := make([]int, rank)
	n := 1
	for i, d := range dims {
		shape[i] = int(d)
		n *= int(d)
	}

	bits := make([]uint16, n)
	if err := binary.Read(r, binary.LittleEndian, bits); err != nil {
		return nil, fmt.Errorf("lumina: decode latent data: %w", err)
	}
	data := make([]float32, n)
	for i, b := range bits {
		data[i] = float16.Frombits(b).Float32()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}
