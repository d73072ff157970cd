package recognizer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
)

const (
	studioLabelColumn = "Scored Labels"
	studioProbColumn  = "Scored Probabilities for Class \"%d\""
)

// Studio calls a request-response scoring service that takes the grid as a
// single table row named p0..pN and answers with a scored table.
type Studio struct {
	client   *resty.Client
	endpoint string
	key      string
}

type studioTable struct {
	ColumnNames []string `json:"ColumnNames"`
	Values      [][]any  `json:"Values"`
}

type studioRequest struct {
	Inputs           map[string]studioTable `json:"Inputs"`
	GlobalParameters map[string]any         `json:"GlobalParameters"`
}

type studioResponse struct {
	Results map[string]struct {
		Type  string      `json:"type"`
		Value studioTable `json:"value"`
	} `json:"Results"`
}

// NewStudio creates the backend. The endpoint is required.
func NewStudio(cfg Config) (*Studio, error) {
	if err := requireEndpoint(KindStudio, cfg); err != nil {
		return nil, err
	}
	return &Studio{client: newRESTClient(cfg), endpoint: cfg.Endpoint, key: cfg.Key}, nil
}

// Name returns the backend kind.
func (s *Studio) Name() string { return KindStudio }

// Predict sends the grid row and reads the scored label and its probability.
func (s *Studio) Predict(ctx context.Context, in Input) (Prediction, error) {
	if in.Grid.Len() == 0 {
		return Prediction{}, fmt.Errorf("%s: %w: intensity grid", KindStudio, ErrMissingInput)
	}

	row := make([]any, len(in.Grid.Values))
	for i, v := range in.Grid.Values {
		row[i] = v
	}
	body := studioRequest{
		Inputs: map[string]studioTable{
			"input1": {ColumnNames: columnNames(len(row)), Values: [][]any{row}},
		},
		GlobalParameters: map[string]any{},
	}

	req := s.client.R().SetHeader("Content-Type", "application/json").SetBody(body)
	if s.key != "" {
		req.SetAuthToken(s.key)
	}

	var out studioResponse
	if err := postJSON(ctx, KindStudio, req, s.endpoint, &out); err != nil {
		return Prediction{}, err
	}
	output, ok := out.Results["output1"]
	if !ok || len(output.Value.Values) == 0 {
		return Prediction{}, fmt.Errorf("%s: %w", KindStudio, ErrNoPrediction)
	}
	return readStudioRow(output.Value.ColumnNames, output.Value.Values[0])
}

func columnNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "p" + strconv.Itoa(i)
	}
	return names
}

func readStudioRow(columns []string, row []any) (Prediction, error) {
	cell := func(name string) (string, bool) {
		for i, c := range columns {
			if c == name && i < len(row) {
				return fmt.Sprint(row[i]), true
			}
		}
		return "", false
	}

	label, ok := cell(studioLabelColumn)
	if !ok {
		return Prediction{}, fmt.Errorf("%s: %w: no %q column", KindStudio, ErrNoPrediction, studioLabelColumn)
	}
	digit, ok := parseDigit(label)
	if !ok {
		return Prediction{}, fmt.Errorf("%s: %w: label %q", KindStudio, ErrInvalidPrediction, label)
	}
	raw, ok := cell(fmt.Sprintf(studioProbColumn, digit))
	if !ok {
		return Prediction{}, fmt.Errorf("%s: %w: no probability for %d", KindStudio, ErrNoPrediction, digit)
	}
	conf, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Prediction{}, fmt.Errorf("%s: %w: probability %q", KindStudio, ErrInvalidPrediction, raw)
	}

	p := Prediction{Digit: digit, Confidence: conf, Backend: KindStudio}
	if err := p.Validate(); err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", KindStudio, err)
	}
	return p, nil
}
