// Package normalize turns a handwritten-digit photo into the canonical 28x28
// grayscale grid digit classifiers are trained on.
//
// The pipeline runs strictly forward:
//
//	raw image -> binary image -> bounding box -> canonical image -> intensity grid
//
// Every stage is a pure function over a PixelBuffer. Stages never mutate their
// input; each returns a freshly allocated buffer, so intermediate results can be
// kept, encoded or compared without aliasing.
package normalize

import (
	"fmt"
	"image"
	"image/color"

	"digitprep/pkg/colorutil"

	"golang.org/x/image/draw"
)

// PixelBuffer is an owned, opaque RGB pixel grid anchored at (0,0).
// The zero value is an empty buffer.
type PixelBuffer struct {
	img *image.RGBA
}

// NewPixelBuffer allocates a width x height buffer filled with fill.
func NewPixelBuffer(width, height int, fill color.RGBA) (PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return PixelBuffer{}, &GeometryError{Stage: "allocate", Width: width, Height: height}
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill = colorutil.Opaque(fill)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = fill.R
		img.Pix[i+1] = fill.G
		img.Pix[i+2] = fill.B
		img.Pix[i+3] = 255
	}
	return PixelBuffer{img: img}, nil
}

// FromImage copies img into a new buffer, compositing it over white.
func FromImage(img image.Image) PixelBuffer {
	return FromImageOn(img, colorutil.White)
}

// FromImageOn copies img into a new buffer, compositing translucent pixels
// over bg. Transparent regions of a PNG therefore read as background rather
// than black ink.
func FromImageOn(img image.Image, bg color.RGBA) PixelBuffer {
	b := img.Bounds()
	if b.Empty() {
		return PixelBuffer{}
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(colorutil.Opaque(bg)), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return PixelBuffer{img: dst}
}

// Width returns the buffer width in pixels.
func (b PixelBuffer) Width() int {
	if b.img == nil {
		return 0
	}
	return b.img.Rect.Dx()
}

// Height returns the buffer height in pixels.
func (b PixelBuffer) Height() int {
	if b.img == nil {
		return 0
	}
	return b.img.Rect.Dy()
}

// Empty reports whether the buffer holds no pixels.
func (b PixelBuffer) Empty() bool {
	return b.Width() == 0 || b.Height() == 0
}

// Bounds returns the buffer rectangle, always anchored at (0,0).
func (b PixelBuffer) Bounds() image.Rectangle {
	if b.img == nil {
		return image.Rectangle{}
	}
	return b.img.Rect
}

// At returns the pixel at (x, y). Out-of-range coordinates yield transparent black.
func (b PixelBuffer) At(x, y int) color.RGBA {
	if b.img == nil {
		return color.RGBA{}
	}
	return b.img.RGBAAt(x, y)
}

// Image exposes the buffer as a read-only image.Image for encoders.
func (b PixelBuffer) Image() image.Image {
	if b.img == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	return b.img
}

// Clone returns a deep copy of the buffer.
func (b PixelBuffer) Clone() PixelBuffer {
	if b.img == nil {
		return PixelBuffer{}
	}
	dst := image.NewRGBA(b.img.Rect)
	copy(dst.Pix, b.img.Pix)
	return PixelBuffer{img: dst}
}

// Equal reports whether two buffers have identical dimensions and pixels.
func (b PixelBuffer) Equal(other PixelBuffer) bool {
	if b.Bounds() != other.Bounds() {
		return false
	}
	if b.img == nil {
		return true
	}
	for i := range b.img.Pix {
		if b.img.Pix[i] != other.img.Pix[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (b PixelBuffer) String() string {
	return fmt.Sprintf("PixelBuffer(%dx%d)", b.Width(), b.Height())
}

// mapPixels returns a new buffer with fn applied to every pixel.
func (b PixelBuffer) mapPixels(fn func(x, y int, c color.RGBA) color.RGBA) PixelBuffer {
	if b.img == nil {
		return PixelBuffer{}
	}
	w, h := b.Width(), b.Height()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	src := b.img
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			c := fn(x, y, color.RGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: 255})
			j := y*dst.Stride + x*4
			dst.Pix[j+0] = c.R
			dst.Pix[j+1] = c.G
			dst.Pix[j+2] = c.B
			dst.Pix[j+3] = 255
		}
	}
	return PixelBuffer{img: dst}
}
