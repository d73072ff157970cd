package recognizer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// CustomVision calls an image classification endpoint that takes the raw
// encoded image and answers with tagged probabilities.
type CustomVision struct {
	client   *resty.Client
	endpoint string
	key      string
}

type customVisionResponse struct {
	Predictions []struct {
		TagName     string  `json:"tagName"`
		Probability float64 `json:"probability"`
	} `json:"predictions"`
}

// NewCustomVision creates the backend. The endpoint is required.
func NewCustomVision(cfg Config) (*CustomVision, error) {
	if err := requireEndpoint(KindCustomVision, cfg); err != nil {
		return nil, err
	}
	return &CustomVision{client: newRESTClient(cfg), endpoint: cfg.Endpoint, key: cfg.Key}, nil
}

// Name returns the backend kind.
func (c *CustomVision) Name() string { return KindCustomVision }

// Predict uploads the encoded image and returns the most probable digit tag.
// Tags that do not name a digit are ignored.
func (c *CustomVision) Predict(ctx context.Context, in Input) (Prediction, error) {
	if len(in.Image) == 0 {
		return Prediction{}, fmt.Errorf("%s: %w: encoded image", KindCustomVision, ErrMissingInput)
	}

	req := c.client.R().
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(in.Image)
	if c.key != "" {
		req.SetHeader("Prediction-Key", c.key)
	}

	var out customVisionResponse
	if err := postJSON(ctx, KindCustomVision, req, c.endpoint, &out); err != nil {
		return Prediction{}, err
	}

	best := Prediction{Digit: -1, Backend: KindCustomVision}
	for _, p := range out.Predictions {
		d, ok := parseDigit(p.TagName)
		if !ok {
			continue
		}
		if best.Digit < 0 || p.Probability > best.Confidence {
			best.Digit, best.Confidence = d, p.Probability
		}
	}
	if best.Digit < 0 {
		return Prediction{}, fmt.Errorf("%s: %w", KindCustomVision, ErrNoPrediction)
	}
	if err := best.Validate(); err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", KindCustomVision, err)
	}
	return best, nil
}
