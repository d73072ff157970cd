package normalize

import (
	"image"
	"image/color"

	"digitprep/pkg/geometry"

	"golang.org/x/image/draw"
)

// Canonicalize crops src to box, pads the crop to a square, resizes it to
// p.DigitSize and adds a uniform background border up to p.CanvasSize.
// For any valid box the result is exactly CanvasSize x CanvasSize.
func Canonicalize(src PixelBuffer, box BoundingBox, p Params) (PixelBuffer, error) {
	cropped, err := Crop(src, box)
	if err != nil {
		return PixelBuffer{}, err
	}
	square, err := SquarePad(cropped, p.Colors.Background)
	if err != nil {
		return PixelBuffer{}, err
	}
	digit, err := Resize(square, p.DigitSize, p.resampler())
	if err != nil {
		return PixelBuffer{}, err
	}
	out, err := PadBorder(digit, p.Margin(), p.Colors.Background)
	if err != nil {
		return PixelBuffer{}, err
	}
	if out.Width() != p.CanvasSize || out.Height() != p.CanvasSize {
		return PixelBuffer{}, &GeometryError{Stage: "canonicalize", Width: out.Width(), Height: out.Height()}
	}
	return out, nil
}

// Crop copies the pixels inside box into a new buffer.
func Crop(src PixelBuffer, box BoundingBox) (PixelBuffer, error) {
	if err := box.validate(src.Width(), src.Height()); err != nil {
		return PixelBuffer{}, err
	}
	r := box.Rect()
	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(dst, dst.Bounds(), src.img, image.Pt(r.X, r.Y), draw.Src)
	return PixelBuffer{img: dst}, nil
}

// SquarePad centers src on a side x side canvas of bg, where side is the
// longer of its two dimensions. The aspect ratio of the stroke is preserved.
func SquarePad(src PixelBuffer, bg color.RGBA) (PixelBuffer, error) {
	w, h := src.Width(), src.Height()
	if w <= 0 || h <= 0 {
		return PixelBuffer{}, &GeometryError{Stage: "square pad", Width: w, Height: h}
	}
	side := max(w, h)
	if side == w && side == h {
		return src.Clone(), nil
	}
	return place(src, side, side, bg)
}

// Resize scales src to size x size using r.
func Resize(src PixelBuffer, size int, r Resampler) (PixelBuffer, error) {
	if src.Empty() || size <= 0 {
		return PixelBuffer{}, &GeometryError{Stage: "resize", Width: size, Height: size}
	}
	if src.Width() == size && src.Height() == size {
		return src.Clone(), nil
	}
	out, err := r.Resample(src.img, size, size)
	if err != nil {
		return PixelBuffer{}, err
	}
	if out.Rect.Dx() != size || out.Rect.Dy() != size {
		return PixelBuffer{}, &GeometryError{Stage: "resize " + r.Name(), Width: out.Rect.Dx(), Height: out.Rect.Dy()}
	}
	return bufferFrom(out), nil
}

// PadBorder surrounds src with margin pixels of bg on every side.
func PadBorder(src PixelBuffer, margin int, bg color.RGBA) (PixelBuffer, error) {
	if margin < 0 {
		return PixelBuffer{}, &GeometryError{Stage: "pad border", Width: margin, Height: margin}
	}
	return place(src, src.Width()+2*margin, src.Height()+2*margin, bg)
}

// place centers src on a new width x height canvas filled with bg.
func place(src PixelBuffer, width, height int, bg color.RGBA) (PixelBuffer, error) {
	canvas, err := NewPixelBuffer(width, height, bg)
	if err != nil {
		return PixelBuffer{}, err
	}
	inner := geometry.Centered(geometry.NewRectInt(0, 0, width, height), src.Width(), src.Height())
	draw.Draw(canvas.img, inner.Image(), src.img, image.Point{}, draw.Src)
	return canvas, nil
}
