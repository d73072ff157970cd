package normalize

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"digitprep/pkg/colorutil"

	"github.com/stretchr/testify/require"
)

func whiteCanvas(t *testing.T, w, h int) PixelBuffer {
	t.Helper()
	buf, err := NewPixelBuffer(w, h, colorutil.White)
	require.NoError(t, err)
	return buf
}

// paint fills the inclusive rectangle [x0,x1]x[y0,y1] in place.
func paint(buf PixelBuffer, x0, y0, x1, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			buf.img.SetRGBA(x, y, c)
		}
	}
}

func noiseImage(seed uint64, w, h int) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = uint8(rng.IntN(256))
		img.Pix[i+1] = uint8(rng.IntN(256))
		img.Pix[i+2] = uint8(rng.IntN(256))
		img.Pix[i+3] = 255
	}
	return img
}

// sparseBinary returns a binary buffer with roughly density foreground pixels.
func sparseBinary(t *testing.T, seed uint64, w, h int, density float64) PixelBuffer {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	buf := whiteCanvas(t, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Float64() < density {
				buf.img.SetRGBA(x, y, colorutil.Black)
			}
		}
	}
	return buf
}

// photoLike draws a dark stroke on a light, unevenly lit background.
func photoLike(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, 7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			shade := 230 - (x+y)*20/(w+h) + rng.IntN(10)
			img.SetRGBA(x, y, color.RGBA{R: uint8(shade), G: uint8(shade), B: uint8(shade - 5), A: 255})
		}
	}
	x0, x1 := w*2/5, w*3/5
	for y := h / 4; y < h*3/4; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 30, G: 30, B: 40, A: 255})
		}
	}
	return img
}
