package normalize

import (
	"fmt"
	"image/color"

	"digitprep/pkg/colorutil"
	"digitprep/pkg/geometry"
)

// BoundingBox is an inclusive pixel rectangle:
// 0 <= Left <= Right < width and 0 <= Top <= Bottom < height.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the number of columns covered by the box.
func (b BoundingBox) Width() int {
	return b.Right - b.Left + 1
}

// Height returns the number of rows covered by the box.
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top + 1
}

// Contains reports whether (x, y) lies inside the box.
func (b BoundingBox) Contains(x, y int) bool {
	return b.Rect().Contains(geometry.PointInt{X: x, Y: y})
}

// Rect converts the box to a half-open geometry.RectInt.
func (b BoundingBox) Rect() geometry.RectInt {
	return geometry.NewRectInt(b.Left, b.Top, b.Width(), b.Height())
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d]-[%d,%d]", b.Left, b.Top, b.Right, b.Bottom)
}

// validate checks the box against a width x height image.
func (b BoundingBox) validate(width, height int) error {
	if b.Left < 0 || b.Top < 0 || b.Right >= width || b.Bottom >= height ||
		b.Width() <= 0 || b.Height() <= 0 {
		return &GeometryError{Stage: "bounding box " + b.String(), Width: b.Width(), Height: b.Height()}
	}
	return nil
}

// Locate finds the rectangle enclosing every non-background pixel of a
// binary image. Each edge is found by its own scan inward from that edge.
// An all-background image yields ErrEmptyForeground.
func Locate(src PixelBuffer, background color.RGBA, policy BoxPolicy) (BoundingBox, error) {
	w, h := src.Width(), src.Height()
	if w <= 0 || h <= 0 {
		return BoundingBox{}, &GeometryError{Stage: "locate", Width: w, Height: h}
	}

	pureColumn := func(x int) bool {
		for y := 0; y < h; y++ {
			if !colorutil.Equal(src.At(x, y), background) {
				return false
			}
		}
		return true
	}
	pureRow := func(y int) bool {
		for x := 0; x < w; x++ {
			if !colorutil.Equal(src.At(x, y), background) {
				return false
			}
		}
		return true
	}

	left, ok := scanEdge(0, w-1, 1, pureColumn, policy)
	if !ok {
		return BoundingBox{}, ErrEmptyForeground
	}
	top, _ := scanEdge(0, h-1, 1, pureRow, policy)
	right, _ := scanEdge(w-1, 0, -1, pureColumn, policy)
	bottom, _ := scanEdge(h-1, 0, -1, pureRow, policy)

	box := BoundingBox{Left: left, Top: top, Right: right, Bottom: bottom}
	if err := box.validate(w, h); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// scanEdge walks lines from start toward end (inclusive) in steps of step
// until a line holding foreground is found.
//
// TightBox reports that first impure line. ReferenceMargin reports the last
// pure line seen before it; the running limit starts at the edge itself, so
// a foreground line at the very edge leaves the limit on the edge.
func scanEdge(start, end, step int, pure func(int) bool, policy BoxPolicy) (int, bool) {
	limit := start
	for i := start; ; i += step {
		if !pure(i) {
			if policy == ReferenceMargin {
				return limit, true
			}
			return i, true
		}
		limit = i
		if i == end {
			return limit, false
		}
	}
}
