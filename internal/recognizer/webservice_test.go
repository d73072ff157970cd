package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebService_Predict(t *testing.T) {
	t.Run("Should send scaled values and take the argmax", func(t *testing.T) {
		var body map[string][][]float64
		srv := serveJSON(t, http.StatusOK, `[[0.01,0.02,0.03,0.04,0.05,0.06,0.07,0.6,0.08,0.04]]`, func(r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		})
		w, err := NewWebService(testConfig(KindWebService, srv.URL))
		require.NoError(t, err)

		p, err := w.Predict(context.Background(), Input{Grid: testGrid()})

		require.NoError(t, err)
		assert.Equal(t, 7, p.Digit)
		assert.InDelta(t, 0.6, p.Confidence, 1e-12)
		require.Len(t, body["data"], 1)
		require.Len(t, body["data"][0], 784)
		assert.InDelta(t, 1.0, body["data"][0][300], 1e-12)
		assert.Zero(t, body["data"][0][0])
	})

	t.Run("Should accept a JSON-encoded string payload", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `"[[0.9,0.1,0,0,0,0,0,0,0,0]]"`, nil)
		w, err := NewWebService(testConfig(KindWebService, srv.URL))
		require.NoError(t, err)

		p, err := w.Predict(context.Background(), Input{Grid: testGrid()})

		require.NoError(t, err)
		assert.Equal(t, 0, p.Digit)
		assert.InDelta(t, 0.9, p.Confidence, 1e-12)
	})

	t.Run("Should fail with ErrNoPrediction on an empty vector", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `[[]]`, nil)
		w, err := NewWebService(testConfig(KindWebService, srv.URL))
		require.NoError(t, err)

		_, err = w.Predict(context.Background(), Input{Grid: testGrid()})
		assert.ErrorIs(t, err, ErrNoPrediction)
	})

	t.Run("Should reject scores that are not probabilities", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `[[3.5,0.1]]`, nil)
		w, err := NewWebService(testConfig(KindWebService, srv.URL))
		require.NoError(t, err)

		_, err = w.Predict(context.Background(), Input{Grid: testGrid()})
		assert.ErrorIs(t, err, ErrInvalidPrediction)
	})

	t.Run("Should fail on an unreadable payload", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `{"oops":true}`, nil)
		w, err := NewWebService(testConfig(KindWebService, srv.URL))
		require.NoError(t, err)

		_, err = w.Predict(context.Background(), Input{Grid: testGrid()})
		assert.Error(t, err)
	})
}
