package recognizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// WebService calls a scoring script that takes {"data": [[...]]} and returns
// one probability vector per row, either as JSON or as a JSON-encoded string.
type WebService struct {
	client   *resty.Client
	endpoint string
	key      string
	scale    float64
}

// NewWebService creates the backend. The endpoint is required; a zero
// InputScale sends grid values unscaled.
func NewWebService(cfg Config) (*WebService, error) {
	if err := requireEndpoint(KindWebService, cfg); err != nil {
		return nil, err
	}
	scale := cfg.InputScale
	if scale == 0 {
		scale = 1
	}
	return &WebService{client: newRESTClient(cfg), endpoint: cfg.Endpoint, key: cfg.Key, scale: scale}, nil
}

// Name returns the backend kind.
func (w *WebService) Name() string { return KindWebService }

// Predict sends the scaled grid and picks the most probable class.
func (w *WebService) Predict(ctx context.Context, in Input) (Prediction, error) {
	if in.Grid.Len() == 0 {
		return Prediction{}, fmt.Errorf("%s: %w: intensity grid", KindWebService, ErrMissingInput)
	}

	body := map[string][][]float64{"data": {in.Grid.Floats(w.scale)}}
	req := w.client.R().SetHeader("Content-Type", "application/json").SetBody(body)
	if w.key != "" {
		req.SetAuthToken(w.key)
	}

	var raw json.RawMessage
	if err := postJSON(ctx, KindWebService, req, w.endpoint, &raw); err != nil {
		return Prediction{}, err
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return Prediction{}, fmt.Errorf("%s response: %w", KindWebService, err)
	}
	if len(scores) == 0 || len(scores[0]) == 0 {
		return Prediction{}, fmt.Errorf("%s: %w", KindWebService, ErrNoPrediction)
	}

	digit, conf := argmax(scores[0])
	p := Prediction{Digit: digit, Confidence: conf, Backend: KindWebService}
	if err := p.Validate(); err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", KindWebService, err)
	}
	return p, nil
}

func decodeScores(raw json.RawMessage) ([][]float64, error) {
	var scores [][]float64
	if err := json.Unmarshal(raw, &scores); err == nil {
		return scores, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("unexpected payload %s", truncate(string(raw), 80))
	}
	if err := json.Unmarshal([]byte(encoded), &scores); err != nil {
		return nil, fmt.Errorf("unexpected payload %s", truncate(encoded, 80))
	}
	return scores, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
