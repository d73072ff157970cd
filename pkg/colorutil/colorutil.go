// Package colorutil provides shared color utilities for the digit normalizer.
package colorutil

import (
	"image/color"
	"math"
)

// Common colors used throughout the application.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// Luma returns the ITU-R 601 luminance of an RGB triple (0-255).
// The integer weights are the ones image/color.GrayModel uses, so results
// agree bit-for-bit with the standard library.
func Luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}

// Mean returns round((r+g+b)/3).
func Mean(r, g, b uint8) uint8 {
	sum := int(r) + int(g) + int(b)
	return uint8((sum + 1) / 3)
}

// Lerp blends from a toward b by t (0.0 keeps a, 1.0 yields b).
// Each channel is rounded to the nearest integer.
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		A: 255,
	}
}

// Equal reports whether two colors have identical RGB channels. Alpha is ignored.
func Equal(a, b color.RGBA) bool {
	return a.R == b.R && a.G == b.G && a.B == b.B
}

// Opaque returns c with alpha forced to 255.
func Opaque(c color.RGBA) color.RGBA {
	c.A = 255
	return c
}
