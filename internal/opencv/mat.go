// Package opencv bridges PixelBuffer images and gocv matrices so the
// normalizer can use OpenCV's INTER_AREA resize.
package opencv

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// ImageToMat converts an RGBA image to a BGR gocv.Mat. The caller owns the
// returned Mat and must Close it.
func ImageToMat(img *image.RGBA) (gocv.Mat, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("cannot convert empty image %v", bounds)
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	forStripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			row := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			for x := 0; x < width; x++ {
				i := row + x*4
				// OpenCV uses BGR order
				mat.SetUCharAt(y, x*3+0, img.Pix[i+2])
				mat.SetUCharAt(y, x*3+1, img.Pix[i+1])
				mat.SetUCharAt(y, x*3+2, img.Pix[i+0])
			}
		}
	})
	return mat, nil
}

// MatToImage converts a BGR gocv.Mat to an opaque RGBA image.
func MatToImage(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("cannot convert empty mat")
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("unsupported mat type %v", mat.Type())
	}
	h, w := mat.Rows(), mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	forStripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			row := y * img.Stride
			for x := 0; x < w; x++ {
				i := row + x*4
				img.Pix[i+0] = mat.GetUCharAt(y, x*3+2) // R
				img.Pix[i+1] = mat.GetUCharAt(y, x*3+1) // G
				img.Pix[i+2] = mat.GetUCharAt(y, x*3+0) // B
				img.Pix[i+3] = 255
			}
		}
	})
	return img, nil
}

// forStripes splits [0, height) into one horizontal stripe per CPU and runs
// fn on each concurrently. Stripes never overlap.
func forStripes(height int, fn func(yStart, yEnd int)) {
	workers := runtime.NumCPU()
	rowsPerWorker := (height + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		if start >= height {
			break
		}
		end := min(start+rowsPerWorker, height)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}
