// pipeline.go - Sampling-Pipeline fuer Lumina-Next
//
// Dieses Modul enthaelt:
// - Transformer: Interface zum externen Vektorfeld-Modell
// - ModelInput: Eingaben eines einzelnen Forward-Passes
// - Pipeline.Generate: Rauschen -> ODE-Integration -> Latents
//
// Die Pipeline haengt das Vektorfeld als Closure in den Integrator ein
// (explizite Komposition); das Monkey-Patching des Original-Wrappers
// entfaellt, zwei gleichzeitige Laeufe teilen keinen Zustand.

package lumina

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"
	"gorgonia.org/vecf32"

	"github.com/luminal-ai/luminagen/ode"
	"github.com/luminal-ai/luminagen/rope"
)

// Transformer is the pretrained vector-field model. It must be treated as
// read-only for the duration of a sampling run; Predict maps the latent
// state and timestep to a predicted velocity of identical shape.
type Transformer interface {
	Predict(in ModelInput) (*tensor.Dense, error)
}

// ModelInput carries everything one forward pass needs.
type ModelInput struct {
	Latents      *tensor.Dense
	Timestep     float64
	RotaryEmb    *rope.Embedding
	PromptEmbeds *tensor.Dense

	// BaseSequenceLength is the proportional-attention reference, 0 when
	// proportional attention is disabled.
	BaseSequenceLength int
}

// Pipeline drives a Transformer through the reverse-time sampling loop.
type Pipeline struct {
	model Transformer
	tcfg  TransformerConfig
}

// NewPipeline wires a pretrained model and its configuration.
func NewPipeline(model Transformer, tcfg TransformerConfig) (*Pipeline, error) {
	if model == nil {
		return nil, fmt.Errorf("lumina: nil transformer")
	}
	if err := tcfg.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{model: model, tcfg: tcfg}, nil
}

// Generate runs one sampling run and returns the final latents
// [batch, in_channels, height/8, width/8]. Configuration errors surface
// before the first model evaluation; evaluation errors and numerical
// instability abort the run with step and time attached.
func (p *Pipeline) Generate(ctx context.Context, cfg GenerateConfig) (*Output, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	solver, err := ode.ParseSolver(cfg.Solver)
	if err != nil {
		return nil, err
	}
	integrator, err := ode.New(cfg.Steps, solver, cfg.TShift)
	if err != nil {
		return nil, err
	}
	integrator.Progress = cfg.Progress

	seed := cfg.Seed
	if seed < 0 {
		seed = randomSeed()
	}

	latentH := cfg.Height / latentStride
	latentW := cfg.Width / latentStride
	scale := newResolutionScale(cfg.Width, cfg.Height, p.tcfg.DefaultImageSize(), cfg.ScalingWatershed)

	baseSeqLen := 0
	if cfg.ProportionalAttn {
		baseSeqLen = p.tcfg.BaseSequenceLength()
	}

	useCFG := cfg.NegativePromptEmbeds != nil && cfg.GuidanceScale > 1

	slog.Debug("starting sampling run",
		"solver", cfg.Solver,
		"steps", cfg.Steps,
		"t_shift", cfg.TShift,
		"seed", seed,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"batch", cfg.NumImagesPerPrompt,
		"scale_factor", scale.factor,
		"watershed", scale.watershed,
		"cfg", useCFG)

	headDim := p.tcfg.HeadDim()
	fn := func(x *tensor.Dense, t float64) (*tensor.Dense, error) {
		linearFactor, ntkFactor := scale.factors(t)

		// Jeden Schritt neu: die aktiven Faktoren wechseln an der
		// Wasserscheide, ein Cache ueber Schritte waere falsch.
		emb, err := rope.Get2DRotaryPosEmbed(headDim, latentH, latentW, linearFactor, ntkFactor)
		if err != nil {
			return nil, err
		}

		in := ModelInput{
			Latents:            x,
			Timestep:           t,
			RotaryEmb:          emb,
			PromptEmbeds:       cfg.PromptEmbeds,
			BaseSequenceLength: baseSeqLen,
		}
		pos, err := p.model.Predict(in)
		if err != nil {
			return nil, fmt.Errorf("transformer: %w", err)
		}
		if !useCFG {
			return pos, nil
		}

		in.PromptEmbeds = cfg.NegativePromptEmbeds
		neg, err := p.model.Predict(in)
		if err != nil {
			return nil, fmt.Errorf("transformer (negative): %w", err)
		}
		return guide(pos, neg, cfg.GuidanceScale)
	}

	latents := initNoise([]int{cfg.NumImagesPerPrompt, p.tcfg.InChannels, latentH, latentW}, seed)
	final, err := integrator.Sample(ctx, latents, fn)
	if err != nil {
		return nil, err
	}
	return &Output{Latents: final, Seed: seed}, nil
}

// guide combines the conditional and unconditional predictions:
// neg + scale*(pos - neg). The result reuses the pos tensor.
func guide(pos, neg *tensor.Dense, guidanceScale float64) (*tensor.Dense, error) {
	pd, ok := pos.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("lumina: prediction must be float32, got %T", pos.Data())
	}
	nd, ok := neg.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("lumina: prediction must be float32, got %T", neg.Data())
	}
	if len(pd) != len(nd) {
		return nil, fmt.Errorf("lumina: prediction size mismatch: %d vs %d", len(pd), len(nd))
	}

	vecf32.Sub(pd, nd)
	vecf32.Scale(pd, float32(guidanceScale))
	vecf32.Add(pd, nd)
	return pos, nil
}
