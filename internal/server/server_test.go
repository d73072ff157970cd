package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"digitprep/internal/cache"
	"digitprep/internal/codec"
	"digitprep/internal/config"
	"digitprep/internal/normalize"
	"digitprep/internal/recognizer"
	"digitprep/pkg/colorutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRecognizer struct {
	name  string
	calls atomic.Int32
	pred  recognizer.Prediction
	err   error
	last  recognizer.Input
}

func (f *fakeRecognizer) Name() string {
	if f.name != "" {
		return f.name
	}
	return "fake"
}

func (f *fakeRecognizer) Predict(_ context.Context, in recognizer.Input) (recognizer.Prediction, error) {
	f.calls.Add(1)
	f.last = in
	return f.pred, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New("")
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, rec recognizer.Recognizer, store cache.Store) http.Handler {
	t.Helper()
	params, err := cfg.Normalize.Params()
	require.NoError(t, err)
	n, err := normalize.New(params)
	require.NoError(t, err)
	return New(cfg, n, rec, store, nil).Router()
}

// digitPNG encodes a white page, optionally with a black bar on it.
func digitPNG(t *testing.T, ink bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorutil.White), image.Point{}, draw.Src)
	if ink {
		draw.Draw(img, image.Rect(20, 10, 30, 50), image.NewUniform(colorutil.Black), image.Point{}, draw.Src)
	}
	data, err := codec.Encode(normalize.FromImage(img), codec.FormatPNG)
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, path, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="digit.png"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestRouter_Health(t *testing.T) {
	h := newTestServer(t, testConfig(t), nil, nil)

	t.Run("Should report ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("Should report the build version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"git_commit"`)
	})

	t.Run("Should answer CORS preflights", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/normalize", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServer_Normalize(t *testing.T) {
	t.Run("Should return the box, grid and canonical image", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)

		rec, env := serve(h, uploadRequest(t, "/api/v1/normalize", "image/png", digitPNG(t, true)))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data NormalizeData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, normalize.BoundingBox{Left: 20, Top: 10, Right: 29, Bottom: 49}, data.Box)
		assert.Len(t, data.Grid.Values, 784)
		assert.Equal(t, cache.GridFingerprint(normalize.DefaultParams(), testConfig(t).Upload.MaxSide), data.Fingerprint)
		assert.Equal(t, cache.Digest(digitPNG(t, true)), data.MD5)
		assert.Greater(t, data.Stats.InkFraction, 0.0)

		raw, err := base64.StdEncoding.DecodeString(data.CanonicalPNG)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 28, 28), img.Bounds())
	})

	t.Run("Should sniff uploads sent as octet-stream", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		rec, _ := serve(h, uploadRequest(t, "/api/v1/normalize", "application/octet-stream", digitPNG(t, true)))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("Should answer 422 for a blank page", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		rec, env := serve(h, uploadRequest(t, "/api/v1/normalize", "image/png", digitPNG(t, false)))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("Should answer 400 without a file", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/normalize", nil)
		rec, _ := serve(h, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should answer 415 for other content types", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		rec, _ := serve(h, uploadRequest(t, "/api/v1/normalize", "image/gif", []byte("GIF89a")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

		rec, _ = serve(h, uploadRequest(t, "/api/v1/normalize", "", []byte("plain text, not an image")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("Should answer 400 for corrupt image data", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		rec, _ := serve(h, uploadRequest(t, "/api/v1/normalize", "image/png", []byte("\x89PNG\r\n\x1a\ngarbage")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should answer 413 for oversized uploads", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Upload.MaxSize = 16
		h := newTestServer(t, cfg, nil, nil)
		rec, _ := serve(h, uploadRequest(t, "/api/v1/normalize", "image/png", digitPNG(t, true)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestServer_Predict(t *testing.T) {
	newStore := func(t *testing.T) cache.Store {
		mr := miniredis.RunT(t)
		store := cache.NewRedisStore(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour}, nil)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("Should predict once and then serve from the cache", func(t *testing.T) {
		fake := &fakeRecognizer{pred: recognizer.Prediction{Digit: 1, Confidence: 0.97, Backend: "fake"}}
		h := newTestServer(t, testConfig(t), fake, newStore(t))
		upload := digitPNG(t, true)

		rec, env := serve(h, uploadRequest(t, "/api/v1/predict", "image/png", upload))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var first PredictData
		require.NoError(t, json.Unmarshal(env.Data, &first))
		require.NotNil(t, first.Outcome)
		require.NotNil(t, first.Prediction)
		assert.Equal(t, 1, first.Prediction.Digit)
		assert.False(t, first.Cached)
		assert.Equal(t, codec.ContentTypePNG, fake.last.ContentType)
		assert.Equal(t, 784, fake.last.Grid.Len())

		rec, env = serve(h, uploadRequest(t, "/api/v1/predict", "image/png", upload))
		require.Equal(t, http.StatusOK, rec.Code)
		var second PredictData
		require.NoError(t, json.Unmarshal(env.Data, &second))
		assert.True(t, second.Cached)
		assert.Equal(t, int32(1), fake.calls.Load())

		rec, env = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+cache.Digest(upload), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var stored PredictData
		require.NoError(t, json.Unmarshal(env.Data, &stored))
		assert.Equal(t, first.Box, stored.Box)
	})

	t.Run("Should miss the cache after a config change that alters the outcome", func(t *testing.T) {
		store := newStore(t)
		upload := digitPNG(t, true)
		pred := recognizer.Prediction{Digit: 1, Confidence: 0.9, Backend: "fake"}

		base := &fakeRecognizer{pred: pred}
		rec, _ := serve(newTestServer(t, testConfig(t), base, store), uploadRequest(t, "/api/v1/predict", "image/png", upload))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		smaller := testConfig(t)
		smaller.Upload.MaxSide = 40
		raw := testConfig(t)
		raw.Recognizer.SendRaw = true
		variants := []struct {
			name string
			cfg  *config.Config
			rec  *fakeRecognizer
		}{
			{"max side", smaller, &fakeRecognizer{pred: pred}},
			{"send raw", raw, &fakeRecognizer{pred: pred}},
			{"backend", testConfig(t), &fakeRecognizer{name: "other", pred: pred}},
		}
		for _, v := range variants {
			h := newTestServer(t, v.cfg, v.rec, store)

			rec, env := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+cache.Digest(upload), nil))
			assert.Equal(t, http.StatusNotFound, rec.Code, v.name)

			rec, env = serve(h, uploadRequest(t, "/api/v1/predict", "image/png", upload))
			require.Equal(t, http.StatusOK, rec.Code, v.name)
			var data PredictData
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.False(t, data.Cached, v.name)
			assert.Equal(t, int32(1), v.rec.calls.Load(), v.name)
		}

		rec, env := serve(newTestServer(t, testConfig(t), base, store), uploadRequest(t, "/api/v1/predict", "image/png", upload))
		require.Equal(t, http.StatusOK, rec.Code)
		var again PredictData
		require.NoError(t, json.Unmarshal(env.Data, &again))
		assert.True(t, again.Cached)
		assert.Equal(t, int32(1), base.calls.Load())
	})

	t.Run("Should forward the raw upload when configured", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Recognizer.SendRaw = true
		fake := &fakeRecognizer{pred: recognizer.Prediction{Digit: 4, Confidence: 0.5, Backend: "fake"}}
		h := newTestServer(t, cfg, fake, nil)
		upload := digitPNG(t, true)

		rec, _ := serve(h, uploadRequest(t, "/api/v1/predict", "image/png", upload))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, upload, fake.last.Image)
	})

	t.Run("Should answer 502 when the recognizer fails", func(t *testing.T) {
		fake := &fakeRecognizer{err: fmt.Errorf("studio: %w", recognizer.ErrNoPrediction)}
		h := newTestServer(t, testConfig(t), fake, nil)

		rec, env := serve(h, uploadRequest(t, "/api/v1/predict", "image/png", digitPNG(t, true)))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, env.Error, "no prediction")
	})

	t.Run("Should answer 503 without a recognizer", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, nil)
		rec, _ := serve(h, uploadRequest(t, "/api/v1/predict", "image/png", digitPNG(t, true)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Should answer 404 for unknown results", func(t *testing.T) {
		h := newTestServer(t, testConfig(t), nil, newStore(t))
		rec, _ := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/result/ffff", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	t.Run("Should map pipeline errors to status codes", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{codec.ErrUnsupportedContentType, http.StatusUnsupportedMediaType},
			{fmt.Errorf("x: %w", codec.ErrDecodeFailure), http.StatusBadRequest},
			{normalize.ErrEmptyForeground, http.StatusUnprocessableEntity},
			{&normalize.GeometryError{Stage: "crop"}, http.StatusInternalServerError},
			{&recognizer.StatusError{StatusCode: 500}, http.StatusBadGateway},
			{fmt.Errorf("y: %w", recognizer.ErrInvalidPrediction), http.StatusBadGateway},
			{errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
		}
	})
}
