package server

import (
	"errors"
	"net/http"

	"digitprep/internal/cache"
	"digitprep/internal/codec"
	"digitprep/internal/normalize"
	"digitprep/internal/recognizer"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NormalizeData is the payload of POST /api/v1/normalize.
type NormalizeData struct {
	MD5          string                  `json:"md5"`
	Fingerprint  string                  `json:"fingerprint"`
	Box          normalize.BoundingBox   `json:"box"`
	Grid         normalize.IntensityGrid `json:"grid"`
	Stats        normalize.GridStats     `json:"stats"`
	CanonicalPNG string                  `json:"canonical_png"`
}

// PredictData is the payload of POST /api/v1/predict and GET /api/v1/result.
type PredictData struct {
	*cache.Outcome
	Cached bool `json:"cached"`
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var se *recognizer.StatusError
	switch {
	case errors.Is(err, codec.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, codec.ErrDecodeFailure):
		return http.StatusBadRequest
	case errors.Is(err, normalize.ErrEmptyForeground):
		return http.StatusUnprocessableEntity
	case errors.Is(err, normalize.ErrDegenerateGeometry):
		return http.StatusInternalServerError
	case errors.As(err, &se),
		errors.Is(err, recognizer.ErrNoPrediction),
		errors.Is(err, recognizer.ErrInvalidPrediction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
