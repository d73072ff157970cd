// Package recognizer classifies normalized digits through one of several
// interchangeable backends: hosted REST models or a local Tesseract engine.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"digitprep/internal/codec"
	"digitprep/internal/normalize"
)

var (
	// ErrNoPrediction is returned when a backend answers without any usable
	// digit. It is never swallowed into an empty result.
	ErrNoPrediction = errors.New("backend returned no prediction")

	// ErrInvalidPrediction marks a digit outside 0-9 or a confidence outside 0-1.
	ErrInvalidPrediction = errors.New("invalid prediction")

	// ErrMissingInput is returned when the backend's calling convention needs
	// an input the caller did not supply (encoded image or intensity grid).
	ErrMissingInput = errors.New("missing recognizer input")

	// ErrUnknownBackend is returned by New for an unrecognized kind.
	ErrUnknownBackend = errors.New("unknown recognizer backend")
)

// Backend kinds accepted by New.
const (
	KindCustomVision = "customvision"
	KindStudio       = "studio"
	KindWebService   = "webservice"
	KindTesseract    = "tesseract"
)

// Input carries both calling conventions. Image-based backends read Image
// (PNG or JPEG bytes); grid-based backends read Grid.
type Input struct {
	Image       []byte
	ContentType string
	Grid        normalize.IntensityGrid
}

// NewInput builds the payload for one photo. With cfg.SendRaw the original
// bytes go to image-based backends; otherwise the canonical image is sent
// as PNG. The grid is always attached.
func NewInput(cfg Config, raw []byte, rawType string, canonical normalize.PixelBuffer, grid normalize.IntensityGrid) (Input, error) {
	in := Input{Grid: grid}
	if cfg.SendRaw {
		in.Image, in.ContentType = raw, rawType
		return in, nil
	}
	data, err := codec.Encode(canonical, codec.FormatPNG)
	if err != nil {
		return in, fmt.Errorf("failed to encode canonical image: %w", err)
	}
	in.Image, in.ContentType = data, codec.FormatPNG.ContentType()
	return in, nil
}

// Prediction is a classified digit.
type Prediction struct {
	Digit      int     `json:"digit"`
	Confidence float64 `json:"confidence"`
	Backend    string  `json:"backend"`
}

// Validate checks the digit and confidence ranges.
func (p Prediction) Validate() error {
	if p.Digit < 0 || p.Digit > 9 {
		return fmt.Errorf("%w: digit %d", ErrInvalidPrediction, p.Digit)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v", ErrInvalidPrediction, p.Confidence)
	}
	return nil
}

// Recognizer is implemented by every backend.
type Recognizer interface {
	Name() string
	Predict(ctx context.Context, in Input) (Prediction, error)
}

// StatusError reports a non-2xx answer from a REST backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Backend, e.StatusCode, strings.TrimSpace(body))
}

// Config selects and configures one backend.
type Config struct {
	Kind     string `mapstructure:"kind"`
	Endpoint string `mapstructure:"endpoint"`
	Key      string `mapstructure:"key"`

	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`

	// InputScale multiplies grid values before they are sent to grid-based
	// backends (1/255 for unit-range models).
	InputScale float64 `mapstructure:"input_scale"`

	// SendRaw forwards the original upload instead of the canonical image to
	// image-based backends.
	SendRaw bool `mapstructure:"send_raw"`

	// Language is the Tesseract traineddata name.
	Language string `mapstructure:"language"`
}

// DefaultConfig returns a Tesseract setup, the only backend that needs no
// endpoint or credentials.
func DefaultConfig() Config {
	return Config{
		Kind:       KindTesseract,
		Timeout:    10 * time.Second,
		RetryCount: 2,
		RetryWait:  200 * time.Millisecond,
		InputScale: 1.0 / 255,
		Language:   "eng",
	}
}

// New builds the backend named by cfg.Kind.
func New(cfg Config) (Recognizer, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindCustomVision:
		return checked(NewCustomVision(cfg))
	case KindStudio:
		return checked(NewStudio(cfg))
	case KindWebService:
		return checked(NewWebService(cfg))
	case KindTesseract:
		return checked(NewTesseract(cfg))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Kind)
	}
}

// checked keeps a failed constructor from leaking a typed nil.
func checked[T Recognizer](r T, err error) (Recognizer, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// parseDigit accepts tags like "7" or "digit-7".
func parseDigit(tag string) (int, bool) {
	tag = strings.TrimSpace(tag)
	if i := strings.LastIndexAny(tag, "-_ "); i >= 0 {
		tag = tag[i+1:]
	}
	d, err := strconv.Atoi(tag)
	if err != nil || d < 0 || d > 9 {
		return 0, false
	}
	return d, true
}

// argmax returns the index and value of the largest element.
func argmax(values []float64) (int, float64) {
	best, bestVal := -1, math.Inf(-1)
	for i, v := range values {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}

func requireEndpoint(kind string, cfg Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("%s recognizer: endpoint is required", kind)
	}
	return nil
}
