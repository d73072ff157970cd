package normalize

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
)

// Result carries every intermediate of one run.
type Result struct {
	Binary    PixelBuffer
	Box       BoundingBox
	Canonical PixelBuffer
	Grid      IntensityGrid
}

// Normalizer runs the full pipeline with a fixed parameter set. It holds no
// mutable state and is safe for concurrent use as long as each call gets its
// own input.
type Normalizer struct {
	params Params
	logger *zap.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithLogger attaches a logger; stage timings are written at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New validates params and returns a Normalizer.
func New(params Params, opts ...Option) (*Normalizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Resampler == nil {
		params.Resampler = BoxResampler{}
	}
	n := &Normalizer{params: params, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Params returns the parameters the normalizer was built with.
func (n *Normalizer) Params() Params {
	return n.params
}

// NormalizeImage converts img to a PixelBuffer over the background color and
// normalizes it.
func (n *Normalizer) NormalizeImage(img image.Image) (*Result, error) {
	return n.Normalize(FromImageOn(img, n.params.Colors.Background))
}

// Normalize runs separator, locator, canonicalizer and linearization on src.
func (n *Normalizer) Normalize(src PixelBuffer) (*Result, error) {
	if src.Empty() {
		return nil, &GeometryError{Stage: "input", Width: src.Width(), Height: src.Height()}
	}
	start := time.Now()

	binary := Separate(src, n.params)

	box, err := Locate(binary, n.params.Colors.Background, n.params.BoxPolicy)
	if err != nil {
		return nil, fmt.Errorf("locate digit in %s: %w", src, err)
	}

	canonical, err := Canonicalize(binary, box, n.params)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s box %s: %w", src, box, err)
	}

	grid := Linearize(canonical)
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	n.logger.Debug("normalized digit",
		zap.Int("width", src.Width()),
		zap.Int("height", src.Height()),
		zap.Stringer("box", box),
		zap.String("policy", n.params.BoxPolicy.String()),
		zap.String("resampler", n.params.Resampler.Name()),
		zap.Duration("cost", time.Since(start)))

	return &Result{
		Binary:    binary,
		Box:       box,
		Canonical: canonical,
		Grid:      grid,
	}, nil
}
