// Package codec decodes uploaded digit photos into pixel buffers and encodes
// canonical images back to PNG or JPEG.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"digitprep/internal/normalize"
	"digitprep/pkg/colorutil"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

var (
	// ErrUnsupportedContentType is returned for anything other than PNG or JPEG.
	// It is raised before any decoding is attempted.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrDecodeFailure wraps errors from the underlying image decoders.
	ErrDecodeFailure = errors.New("failed to decode image")
)

// Supported content types.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// MaxPixels bounds the decoded image area to keep a hostile header from
// allocating gigabytes.
const MaxPixels = 40_000_000

// Format selects an output encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return ContentTypeJPEG
	}
	return ContentTypePNG
}

// ParseFormat maps "png", "jpg" or "jpeg" onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return FormatPNG, fmt.Errorf("%w: output format %q", ErrUnsupportedContentType, s)
	}
}

// CanonicalContentType lowercases ct, strips parameters and folds image/jpg
// into image/jpeg. It returns "" for anything outside the allow-list.
func CanonicalContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case ContentTypePNG:
		return ContentTypePNG
	case ContentTypeJPEG, "image/jpg", "image/pjpeg":
		return ContentTypeJPEG
	default:
		return ""
	}
}

// IsSupported reports whether ct is PNG or JPEG.
func IsSupported(ct string) bool {
	return CanonicalContentType(ct) != ""
}

// DetectContentType sniffs the MIME type of data, falling back to the
// broader mimetype detector when the stdlib sniffer gives up.
func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	mt := http.DetectContentType(data)
	if mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(data).String()
}

// Decode turns data into a PixelBuffer composited over bg. An empty
// contentType is sniffed from the data.
func Decode(data []byte, contentType string, bg color.RGBA) (normalize.PixelBuffer, error) {
	if contentType == "" {
		contentType = DetectContentType(data)
	}
	ct := CanonicalContentType(contentType)
	if ct == "" {
		return normalize.PixelBuffer{}, fmt.Errorf("%w: %q (want %s or %s)",
			ErrUnsupportedContentType, contentType, ContentTypePNG, ContentTypeJPEG)
	}

	cfg, err := decodeConfig(data, ct)
	if err != nil {
		return normalize.PixelBuffer{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return normalize.PixelBuffer{}, fmt.Errorf("%w: %dx%d image outside limits", ErrDecodeFailure, cfg.Width, cfg.Height)
	}

	img, err := decode(data, ct)
	if err != nil {
		return normalize.PixelBuffer{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return normalize.FromImageOn(img, bg), nil
}

func decodeConfig(data []byte, ct string) (image.Config, error) {
	if ct == ContentTypePNG {
		return png.DecodeConfig(bytes.NewReader(data))
	}
	return jpeg.DecodeConfig(bytes.NewReader(data))
}

func decode(data []byte, ct string) (image.Image, error) {
	if ct == ContentTypePNG {
		return png.Decode(bytes.NewReader(data))
	}
	return jpeg.Decode(bytes.NewReader(data))
}

// Encode writes buf in the requested format. JPEG uses quality 95.
func Encode(buf normalize.PixelBuffer, format Format) ([]byte, error) {
	if buf.Empty() {
		return nil, fmt.Errorf("encode %s: empty buffer", format)
	}
	var out bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(&out, buf.Image())
	case FormatJPEG:
		err = jpeg.Encode(&out, buf.Image(), &jpeg.Options{Quality: 95})
	default:
		return nil, fmt.Errorf("%w: output format %s", ErrUnsupportedContentType, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return out.Bytes(), nil
}

// Load reads and decodes an image file. The content type comes from the
// file extension.
func Load(path string, bg color.RGBA) (normalize.PixelBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return normalize.PixelBuffer{}, fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(data, ContentTypeForPath(path), bg)
}

// ContentTypeForPath guesses the content type from a file extension.
func ContentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return ContentTypePNG
	case ".jpg", ".jpeg":
		return ContentTypeJPEG
	default:
		return ""
	}
}

// SupportedFormats returns the list of accepted file extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg"}
}

// Downsample shrinks buf so its longer side is at most maxSide, keeping the
// aspect ratio. Buffers already within the limit are returned unchanged.
// Camera photos go through this before normalization.
func Downsample(buf normalize.PixelBuffer, maxSide int) normalize.PixelBuffer {
	w, h := buf.Width(), buf.Height()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return buf
	}
	scale := float64(maxSide) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), buf.Image(), buf.Bounds(), draw.Src, nil)
	return normalize.FromImageOn(dst, colorutil.White)
}
