package opencv

import (
	"image"
	"image/color"
	"testing"

	"digitprep/internal/normalize"
	"digitprep/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ normalize.Resampler = AreaResampler{}

func TestImageToMat(t *testing.T) {
	t.Run("Should round-trip pixels through BGR order", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 5, 3))
		img.SetRGBA(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		img.SetRGBA(4, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

		mat, err := ImageToMat(img)
		require.NoError(t, err)
		defer mat.Close()

		assert.Equal(t, uint8(30), mat.GetUCharAt(2, 1*3+0))
		assert.Equal(t, uint8(10), mat.GetUCharAt(2, 1*3+2))

		back, err := MatToImage(mat)
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, back.RGBAAt(1, 2))
		assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, back.RGBAAt(4, 0))
	})

	t.Run("Should reject an empty image", func(t *testing.T) {
		mat, err := ImageToMat(image.NewRGBA(image.Rectangle{}))
		defer mat.Close()
		assert.Error(t, err)
	})
}

func TestAreaResampler(t *testing.T) {
	t.Run("Should keep a uniform image uniform", func(t *testing.T) {
		src, err := normalize.NewPixelBuffer(91, 91, colorutil.Black)
		require.NoError(t, err)

		out, err := normalize.Resize(src, 20, AreaResampler{})

		require.NoError(t, err)
		assert.Equal(t, 20, out.Width())
		for y := 0; y < 20; y++ {
			for x := 0; x < 20; x++ {
				assert.Equal(t, colorutil.Black, out.At(x, y))
			}
		}
	})

	t.Run("Should drive the whole pipeline", func(t *testing.T) {
		n, err := normalize.New(normalize.DefaultParams().WithResampler(AreaResampler{}))
		require.NoError(t, err)
		src, err := normalize.NewPixelBuffer(60, 60, colorutil.White)
		require.NoError(t, err)
		img := src.Image().(*image.RGBA)
		for y := 20; y < 40; y++ {
			img.SetRGBA(30, y, colorutil.Black)
		}

		res, err := n.Normalize(src)

		require.NoError(t, err)
		assert.Equal(t, 784, res.Grid.Len())
		assert.NoError(t, res.Grid.Validate())
	})
}
