package normalize

import (
	"fmt"

	"digitprep/pkg/colorutil"
)

// IntensityGrid is the flattened, inverted-luminance form of a canonical
// image. Values are row-major, each in [0, 255], with ink high and
// background near zero.
type IntensityGrid struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Values []int `json:"values"`
}

// Linearize flattens src row by row into 255 - round((R+G+B)/3).
func Linearize(src PixelBuffer) IntensityGrid {
	w, h := src.Width(), src.Height()
	values := make([]int, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(x, y)
			values = append(values, 255-int(colorutil.Mean(c.R, c.G, c.B)))
		}
	}
	return IntensityGrid{Width: w, Height: h, Values: values}
}

// Len returns the number of values.
func (g IntensityGrid) Len() int {
	return len(g.Values)
}

// At returns the value at column x, row y.
func (g IntensityGrid) At(x, y int) int {
	return g.Values[y*g.Width+x]
}

// Floats returns the values multiplied by scale, e.g. 1.0/255 for models
// trained on unit-range input.
func (g IntensityGrid) Floats(scale float64) []float64 {
	out := make([]float64, len(g.Values))
	for i, v := range g.Values {
		out[i] = float64(v) * scale
	}
	return out
}

// Validate checks shape and range.
func (g IntensityGrid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || len(g.Values) != g.Width*g.Height {
		return &GeometryError{Stage: fmt.Sprintf("intensity grid of %d values", len(g.Values)), Width: g.Width, Height: g.Height}
	}
	for i, v := range g.Values {
		if v < 0 || v > 255 {
			return fmt.Errorf("intensity grid value %d at index %d outside [0, 255]", v, i)
		}
	}
	return nil
}
