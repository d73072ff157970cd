package recognizer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// DigitChars restricts Tesseract to decimal digits.
const DigitChars = "0123456789"

// minOCRSide is the side a digit image is upscaled to before recognition.
const minOCRSide = 112

// Tesseract recognizes a single character locally with Tesseract OCR.
// A gosseract client is not safe for concurrent use, so calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates the engine in single-character mode.
func NewTesseract(cfg Config) (*Tesseract, error) {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Dictionaries only hurt single glyphs.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := client.SetWhitelist(DigitChars); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	return &Tesseract{client: client}, nil
}

// Name returns the backend kind.
func (t *Tesseract) Name() string { return KindTesseract }

// Close releases the OCR engine.
func (t *Tesseract) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// Predict recognizes the encoded image and returns the most confident digit.
func (t *Tesseract) Predict(ctx context.Context, in Input) (Prediction, error) {
	if len(in.Image) == 0 {
		return Prediction{}, fmt.Errorf("%s: %w: encoded image", KindTesseract, ErrMissingInput)
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	png, err := prepareGlyph(in.Image)
	if err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", KindTesseract, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(png); err != nil {
		return Prediction{}, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil {
		return Prediction{}, fmt.Errorf("OCR failed: %w", err)
	}

	p, ok := bestSymbol(boxes)
	if !ok {
		return Prediction{}, fmt.Errorf("%s: %w", KindTesseract, ErrNoPrediction)
	}
	if err := p.Validate(); err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", KindTesseract, err)
	}
	return p, nil
}

// bestSymbol picks the highest-confidence box holding exactly one digit.
// Tesseract reports confidence on a 0-100 scale.
func bestSymbol(boxes []gosseract.BoundingBox) (Prediction, bool) {
	best := Prediction{Digit: -1, Backend: KindTesseract}
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if len(word) != 1 || !strings.Contains(DigitChars, word) {
			continue
		}
		conf := min(max(b.Confidence/100, 0), 1)
		if best.Digit < 0 || conf > best.Confidence {
			best.Digit, best.Confidence = int(word[0]-'0'), conf
		}
	}
	return best, best.Digit >= 0
}

// prepareGlyph decodes the image, upscales it, forces dark ink on a light
// page and adds a quiet zone, which is what Tesseract segments best.
func prepareGlyph(data []byte) ([]byte, error) {
	gray, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer gray.Close()
	if gray.Empty() {
		return nil, fmt.Errorf("failed to decode image")
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	if side := min(gray.Rows(), gray.Cols()); side < minOCRSide {
		scale := float64(minOCRSide) / float64(side)
		gocv.Resize(gray, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		gray.CopyTo(&scaled)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(scaled, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// A mostly black result is a dark page; flip it.
	if gocv.CountNonZero(binary)*2 < binary.Rows()*binary.Cols() {
		gocv.BitwiseNot(binary, &binary)
	}

	padded := gocv.NewMat()
	defer padded.Close()
	pad := minOCRSide / 4
	gocv.CopyMakeBorder(binary, &padded, pad, pad, pad, pad, gocv.BorderConstant, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	buf, err := gocv.IMEncode(gocv.PNGFileExt, padded)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
