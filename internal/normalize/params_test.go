package normalize

import (
	"image/color"
	"testing"

	"digitprep/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Validate(t *testing.T) {
	t.Run("Should accept the defaults", func(t *testing.T) {
		p := DefaultParams()
		require.NoError(t, p.Validate())
		assert.Equal(t, 4, p.Margin())
		assert.Equal(t, 784, p.GridLen())
	})

	cases := []struct {
		name   string
		params Params
	}{
		{"equal colors", DefaultParams().WithColors(colorutil.White, colorutil.White)},
		{"percent-scale threshold", DefaultParams().WithThreshold(50)},
		{"zero threshold", DefaultParams().WithThreshold(0)},
		{"vignette start at the corner", DefaultParams().WithVignette(1, 1)},
		{"vignette strength above one", DefaultParams().WithVignette(0.5, 1.5)},
		{"unknown box policy", DefaultParams().WithBoxPolicy(BoxPolicy(7))},
		{"zero digit size", DefaultParams().WithGeometry(0, 28)},
		{"canvas smaller than digit", DefaultParams().WithGeometry(20, 10)},
		{"uneven border", DefaultParams().WithGeometry(20, 27)},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.params.Validate(), ErrInvalidParams)
		})
	}
}

func TestParams_Fingerprint(t *testing.T) {
	t.Run("Should be stable for equal params", func(t *testing.T) {
		assert.Equal(t, DefaultParams().Fingerprint(), DefaultParams().Fingerprint())
		assert.Len(t, DefaultParams().Fingerprint(), 16)
	})

	t.Run("Should change with anything that affects the output", func(t *testing.T) {
		base := DefaultParams().Fingerprint()
		variants := []Params{
			DefaultParams().WithThreshold(0.5),
			DefaultParams().WithColors(colorutil.Black, colorutil.White),
			DefaultParams().WithVignette(0.7, 1),
			DefaultParams().WithBoxPolicy(ReferenceMargin),
			DefaultParams().WithGeometry(16, 28),
			DefaultParams().WithResampler(KernelResampler{Label: "bilinear"}),
		}
		for _, v := range variants {
			assert.NotEqual(t, base, v.Fingerprint())
		}
	})
}

func TestParseBoxPolicy(t *testing.T) {
	t.Run("Should parse known names", func(t *testing.T) {
		p, err := ParseBoxPolicy("tight")
		require.NoError(t, err)
		assert.Equal(t, TightBox, p)

		p, err = ParseBoxPolicy("reference-margin")
		require.NoError(t, err)
		assert.Equal(t, ReferenceMargin, p)
	})

	t.Run("Should reject unknown names", func(t *testing.T) {
		_, err := ParseBoxPolicy("loose")
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestParseHexColor(t *testing.T) {
	t.Run("Should parse with and without a hash", func(t *testing.T) {
		c, err := ParseHexColor("#ff8000")
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, c)

		c, err = ParseHexColor("000000")
		require.NoError(t, err)
		assert.Equal(t, colorutil.Black, c)
	})

	t.Run("Should reject malformed colors", func(t *testing.T) {
		for _, s := range []string{"", "#fff", "zzzzzz", "#1234567"} {
			_, err := ParseHexColor(s)
			assert.ErrorIs(t, err, ErrInvalidParams, s)
		}
	})
}
