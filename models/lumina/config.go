// config.go - Konfigurationsstrukturen fuer das Lumina-Next Sampling
// Enthaelt TransformerConfig, GenerateConfig mit Defaults und Validierung.

package lumina

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// latentStride is the VAE spatial downscale: one latent cell per 8x8 pixels.
const latentStride = 8

// imageStride is the pixel granularity the pipeline accepts for width and
// height, matching the reference transformer's patch layout.
const imageStride = 64

// TransformerConfig describes the pretrained vector-field model the
// pipeline drives. Defaults match Lumina-Next-SFT.
type TransformerConfig struct {
	HiddenSize        int `json:"hidden_size"`
	NumAttentionHeads int `json:"num_attention_heads"`
	SampleSize        int `json:"sample_size"`
	InChannels        int `json:"in_channels"`
	VAEScaleFactor    int `json:"vae_scale_factor"`
}

// DefaultTransformerConfig returns the Lumina-Next-SFT configuration.
func DefaultTransformerConfig() TransformerConfig {
	return TransformerConfig{
		HiddenSize:        2304,
		NumAttentionHeads: 24,
		SampleSize:        128,
		InChannels:        4,
		VAEScaleFactor:    8,
	}
}

// HeadDim returns the per-head dimension used for rotary embeddings.
func (c TransformerConfig) HeadDim() int {
	return c.HiddenSize / c.NumAttentionHeads
}

// DefaultImageSize is the trained resolution in pixels.
func (c TransformerConfig) DefaultImageSize() int {
	return c.SampleSize * c.VAEScaleFactor
}

// BaseSequenceLength is the proportional-attention reference length,
// (default_image_size/16)^2.
func (c TransformerConfig) BaseSequenceLength() int {
	n := c.DefaultImageSize() / 16
	return n * n
}

func (c TransformerConfig) validate() error {
	if c.HiddenSize <= 0 || c.NumAttentionHeads <= 0 {
		return fmt.Errorf("lumina: invalid transformer config: hidden_size=%d num_attention_heads=%d",
			c.HiddenSize, c.NumAttentionHeads)
	}
	if c.HiddenSize%c.NumAttentionHeads != 0 {
		return fmt.Errorf("lumina: hidden_size %d not divisible by num_attention_heads %d",
			c.HiddenSize, c.NumAttentionHeads)
	}
	if c.SampleSize <= 0 || c.InChannels <= 0 || c.VAEScaleFactor <= 0 {
		return fmt.Errorf("lumina: invalid transformer config: sample_size=%d in_channels=%d vae_scale_factor=%d",
			c.SampleSize, c.InChannels, c.VAEScaleFactor)
	}
	return nil
}

// GenerateConfig holds all options for one sampling run.
type GenerateConfig struct {
	// Prompt conditioning produced by the external text encoder.
	PromptEmbeds         *tensor.Dense
	NegativePromptEmbeds *tensor.Dense // nil = no CFG

	Width             int     // Pixelbreite, Vielfaches von 64 (default: 1024)
	Height            int     // Pixelhoehe, Vielfaches von 64 (default: 1024)
	Steps             int     // Inferenzschritte (default: 30)
	Solver            string  // euler|midpoint|rk4 (default: midpoint)
	TShift            int     // Schedule-Warp, 0 = ungewarpte Basis
	GuidanceScale     float64 // CFG-Staerke (default: 4.0)
	Seed              int64   // negativ = zufaellig
	NumImagesPerPrompt int    // Batchgroesse (default: 1)
	// ScalingWatershed is the time threshold for the factor swap, in
	// [0,1]. The zero value selects the default 1.0; a tiny positive
	// epsilon keeps the NTK branch active on (almost) every step.
	ScalingWatershed float64
	ProportionalAttn bool // Basis-Sequenzlaenge an das Modell reichen

	// Progress, if set, is called with (0, steps) and then (i+1, steps).
	Progress func(step, total int)
}

// applyDefaults sets default values for unset config fields.
func (cfg *GenerateConfig) applyDefaults() {
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 1024
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 30
	}
	if cfg.Solver == "" {
		cfg.Solver = "midpoint"
	}
	if cfg.GuidanceScale <= 0 {
		cfg.GuidanceScale = 4.0
	}
	if cfg.NumImagesPerPrompt <= 0 {
		cfg.NumImagesPerPrompt = 1
	}
	if cfg.ScalingWatershed == 0 {
		cfg.ScalingWatershed = 1.0
	}
}

func (cfg *GenerateConfig) validate() error {
	if cfg.PromptEmbeds == nil {
		return fmt.Errorf("lumina: missing prompt conditioning (PromptEmbeds)")
	}
	if cfg.Width%imageStride != 0 {
		return fmt.Errorf("lumina: width must be a multiple of %d, got %d", imageStride, cfg.Width)
	}
	if cfg.Height%imageStride != 0 {
		return fmt.Errorf("lumina: height must be a multiple of %d, got %d", imageStride, cfg.Height)
	}
	if cfg.ScalingWatershed < 0 || cfg.ScalingWatershed > 1 {
		return fmt.Errorf("lumina: scaling_watershed must be in [0,1], got %v", cfg.ScalingWatershed)
	}
	return nil
}
