package normalize

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Resampler scales an image to an exact size. Implementations must be
// deterministic: equal inputs always produce equal outputs.
type Resampler interface {
	Name() string
	Resample(src *image.RGBA, width, height int) (*image.RGBA, error)
}

// boxKernel averages every source pixel whose center falls inside the
// destination pixel footprint with equal weight.
var boxKernel = &draw.Kernel{
	Support: 0.5,
	At:      func(float64) float64 { return 1 },
}

// BoxResampler is the default resampler. Downscaling uses a box (area
// average) kernel; upscaling replicates pixels, which is what an area filter
// degenerates to when every destination pixel lies inside one source pixel.
type BoxResampler struct{}

func (BoxResampler) Name() string { return "box" }

func (BoxResampler) Resample(src *image.RGBA, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &GeometryError{Stage: "resample", Width: width, Height: height}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	if sb.Dx() > width || sb.Dy() > height {
		boxKernel.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	} else {
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	}
	return dst, nil
}

// KernelResampler wraps one of the x/image/draw interpolators.
type KernelResampler struct {
	Label  string
	Scaler draw.Scaler
}

func (k KernelResampler) Name() string { return k.Label }

func (k KernelResampler) Resample(src *image.RGBA, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &GeometryError{Stage: "resample", Width: width, Height: height}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	k.Scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// ResamplerByName returns one of the pure-Go resamplers.
// Known names: box, nearest, bilinear, catmullrom.
func ResamplerByName(name string) (Resampler, error) {
	switch name {
	case "", "box":
		return BoxResampler{}, nil
	case "nearest":
		return KernelResampler{Label: name, Scaler: draw.NearestNeighbor}, nil
	case "bilinear":
		return KernelResampler{Label: name, Scaler: draw.BiLinear}, nil
	case "catmullrom":
		return KernelResampler{Label: name, Scaler: draw.CatmullRom}, nil
	default:
		return nil, fmt.Errorf("%w: unknown resampler %q", ErrInvalidParams, name)
	}
}

// bufferFrom adopts img as a PixelBuffer, re-anchoring it at (0,0) and
// forcing alpha to opaque if needed.
func bufferFrom(img *image.RGBA) PixelBuffer {
	if img.Rect.Min != (image.Point{}) {
		dst := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
		draw.Draw(dst, dst.Bounds(), img, img.Rect.Min, draw.Src)
		img = dst
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return PixelBuffer{img: img}
}
