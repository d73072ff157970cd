package normalize

import (
	"image/color"
	"math"

	"digitprep/pkg/colorutil"
)

// Separate splits src into foreground and background. The three steps run in
// a fixed order: grayscale, vignette toward paper white, then the fixed
// threshold. The vignette works on photo luminance, so it never depends on
// the output colors. Every pixel of the result equals either
// p.Colors.Background or p.Colors.Foreground.
func Separate(src PixelBuffer, p Params) PixelBuffer {
	gray := Grayscale(src)
	vignetted := Vignette(gray, colorutil.White, p.VignetteStart, p.VignetteStrength)
	return Binarize(vignetted, p.Colors, p.Threshold)
}

// Grayscale replaces every pixel with its ITU-R 601 luminance.
func Grayscale(src PixelBuffer) PixelBuffer {
	return src.mapPixels(func(_, _ int, c color.RGBA) color.RGBA {
		y := colorutil.Luma(c.R, c.G, c.B)
		return color.RGBA{R: y, G: y, B: y, A: 255}
	})
}

// Vignette blends pixels toward bg with a radial falloff. Pixels within
// start (fraction of the half-diagonal, measured from the image center) are
// untouched; beyond it the blend weight grows quadratically and reaches
// strength at the corners.
func Vignette(src PixelBuffer, bg color.RGBA, start, strength float64) PixelBuffer {
	if strength <= 0 {
		return src.Clone()
	}
	cx := float64(src.Width()-1) / 2
	cy := float64(src.Height()-1) / 2
	radius := math.Hypot(cx, cy)
	if radius == 0 {
		return src.Clone()
	}
	span := 1 - start

	return src.mapPixels(func(x, y int, c color.RGBA) color.RGBA {
		d := math.Hypot(float64(x)-cx, float64(y)-cy) / radius
		if d <= start {
			return c
		}
		u := (d - start) / span
		if u > 1 {
			u = 1
		}
		return colorutil.Lerp(c, bg, strength*u*u)
	})
}

// Binarize paints pixels whose normalized luminance is below threshold with
// the foreground color and everything else with the background color.
func Binarize(src PixelBuffer, colors BinaryColors, threshold float64) PixelBuffer {
	bg := colorutil.Opaque(colors.Background)
	fg := colorutil.Opaque(colors.Foreground)
	return src.mapPixels(func(_, _ int, c color.RGBA) color.RGBA {
		if float64(colorutil.Luma(c.R, c.G, c.B))/255 < threshold {
			return fg
		}
		return bg
	})
}

// IsBinary reports whether every pixel of buf equals one of the two colors.
func IsBinary(buf PixelBuffer, colors BinaryColors) bool {
	for y := 0; y < buf.Height(); y++ {
		for x := 0; x < buf.Width(); x++ {
			c := buf.At(x, y)
			if !colorutil.Equal(c, colors.Background) && !colorutil.Equal(c, colors.Foreground) {
				return false
			}
		}
	}
	return true
}
