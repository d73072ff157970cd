package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// AreaResampler resizes with OpenCV's pixel-area relation (INTER_AREA),
// the filter classic digit datasets were prepared with. It satisfies
// normalize.Resampler.
type AreaResampler struct{}

func (AreaResampler) Name() string { return "opencv-area" }

func (AreaResampler) Resample(src *image.RGBA, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("opencv resize to %dx%d", width, height)
	}
	in, err := ImageToMat(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.Resize(in, &out, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationArea)

	return MatToImage(out)
}
