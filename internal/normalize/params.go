package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"

	"digitprep/pkg/colorutil"
)

// Threshold is the fixed binarization cut on the 0.0-1.0 luminance scale.
// Pixels darker than this become foreground.
const Threshold = 0.6

// Canonical geometry of the handwritten-digit dataset format.
const (
	DigitSize  = 20
	CanvasSize = 28
)

// BinaryColors is the (background, foreground) pair the separator paints with.
type BinaryColors struct {
	Background color.RGBA `json:"background"`
	Foreground color.RGBA `json:"foreground"`
}

// DefaultColors returns white background with black ink.
func DefaultColors() BinaryColors {
	return BinaryColors{Background: colorutil.White, Foreground: colorutil.Black}
}

// Validate rejects a pair whose colors are indistinguishable.
func (c BinaryColors) Validate() error {
	if colorutil.Equal(c.Background, c.Foreground) {
		return invalidParams("background and foreground are both %s", hexColor(c.Background))
	}
	return nil
}

// BoxPolicy selects how the bounding-box edges are reported.
type BoxPolicy int

const (
	// TightBox reports the first and last foreground row/column on each edge.
	TightBox BoxPolicy = iota
	// ReferenceMargin stops each edge scan on the last confirmed background
	// line, giving the tight box grown by one pixel and clamped to the image.
	ReferenceMargin
)

func (p BoxPolicy) String() string {
	switch p {
	case TightBox:
		return "tight"
	case ReferenceMargin:
		return "reference-margin"
	default:
		return "unknown"
	}
}

// ParseBoxPolicy maps a config string onto a BoxPolicy.
func ParseBoxPolicy(s string) (BoxPolicy, error) {
	switch s {
	case "", "tight":
		return TightBox, nil
	case "reference-margin", "reference":
		return ReferenceMargin, nil
	default:
		return TightBox, invalidParams("unknown box policy %q", s)
	}
}

// Params configures one normalization run.
type Params struct {
	Colors BinaryColors

	// Threshold on the 0.0-1.0 luminance scale.
	Threshold float64

	// Vignette falloff begins at VignetteStart (fraction of the half-diagonal)
	// and reaches VignetteStrength at the corners.
	VignetteStart    float64
	VignetteStrength float64

	BoxPolicy BoxPolicy

	// DigitSize is the side the squared crop is resized to; CanvasSize is the
	// final side after the uniform border is added.
	DigitSize  int
	CanvasSize int

	// Resampler performs the DigitSize resize. Nil selects BoxResampler.
	Resampler Resampler
}

// DefaultParams returns the canonical 28x28 configuration.
func DefaultParams() Params {
	return Params{
		Colors:    DefaultColors(),
		Threshold: Threshold,

		// Camera shadows collect in the outer ring; ink there rarely matters.
		VignetteStart:    0.6,
		VignetteStrength: 1.0,

		BoxPolicy:  TightBox,
		DigitSize:  DigitSize,
		CanvasSize: CanvasSize,
		Resampler:  BoxResampler{},
	}
}

// WithColors returns a copy of params with a custom color pair.
func (p Params) WithColors(background, foreground color.RGBA) Params {
	p.Colors = BinaryColors{
		Background: colorutil.Opaque(background),
		Foreground: colorutil.Opaque(foreground),
	}
	return p
}

// WithThreshold returns a copy of params with a custom binarization cut.
func (p Params) WithThreshold(threshold float64) Params {
	p.Threshold = threshold
	return p
}

// WithVignette returns a copy of params with a custom vignette falloff.
// A strength of 0 disables the vignette.
func (p Params) WithVignette(start, strength float64) Params {
	p.VignetteStart = start
	p.VignetteStrength = strength
	return p
}

// WithBoxPolicy returns a copy of params using the given edge policy.
func (p Params) WithBoxPolicy(policy BoxPolicy) Params {
	p.BoxPolicy = policy
	return p
}

// WithGeometry returns a copy of params with custom digit and canvas sides.
func (p Params) WithGeometry(digitSize, canvasSize int) Params {
	p.DigitSize = digitSize
	p.CanvasSize = canvasSize
	return p
}

// WithResampler returns a copy of params using r for the digit resize.
func (p Params) WithResampler(r Resampler) Params {
	p.Resampler = r
	return p
}

// Margin returns the border width added around the resized digit.
func (p Params) Margin() int {
	return (p.CanvasSize - p.DigitSize) / 2
}

// GridLen returns the number of values in the intensity grid.
func (p Params) GridLen() int {
	return p.CanvasSize * p.CanvasSize
}

func (p Params) resampler() Resampler {
	if p.Resampler == nil {
		return BoxResampler{}
	}
	return p.Resampler
}

// Validate checks that params describe a runnable pipeline.
func (p Params) Validate() error {
	if err := p.Colors.Validate(); err != nil {
		return err
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return invalidParams("threshold %v outside (0, 1]", p.Threshold)
	}
	if p.VignetteStart < 0 || p.VignetteStart >= 1 {
		return invalidParams("vignette start %v outside [0, 1)", p.VignetteStart)
	}
	if p.VignetteStrength < 0 || p.VignetteStrength > 1 {
		return invalidParams("vignette strength %v outside [0, 1]", p.VignetteStrength)
	}
	if p.BoxPolicy != TightBox && p.BoxPolicy != ReferenceMargin {
		return invalidParams("unknown box policy %d", int(p.BoxPolicy))
	}
	if p.DigitSize <= 0 {
		return invalidParams("digit size %d must be positive", p.DigitSize)
	}
	if p.CanvasSize < p.DigitSize {
		return invalidParams("canvas size %d smaller than digit size %d", p.CanvasSize, p.DigitSize)
	}
	if (p.CanvasSize-p.DigitSize)%2 != 0 {
		return invalidParams("canvas %d and digit %d leave an uneven border", p.CanvasSize, p.DigitSize)
	}
	return nil
}

// Fingerprint returns a short stable digest of every parameter that affects
// the output. Normalizing the same buffer under equal fingerprints produces
// identical grids.
func (p Params) Fingerprint() string {
	desc := fmt.Sprintf("bg=%s fg=%s t=%g vs=%g vk=%g box=%s d=%d c=%d r=%s",
		hexColor(p.Colors.Background), hexColor(p.Colors.Foreground),
		p.Threshold, p.VignetteStart, p.VignetteStrength,
		p.BoxPolicy, p.DigitSize, p.CanvasSize, p.resampler().Name())
	sum := sha256.Sum256([]byte(desc))
	return hex.EncodeToString(sum[:8])
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHexColor parses "#rrggbb" or "rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, invalidParams("color %q is not #rrggbb", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return color.RGBA{}, invalidParams("color %q: %v", s, err)
	}
	return color.RGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}, nil
}
