package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"digitprep/internal/cache"
	"digitprep/internal/codec"
	"digitprep/internal/normalize"
	"digitprep/internal/recognizer"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

type upload struct {
	data        []byte
	contentType string
	md5         string
}

type normalized struct {
	outcome   *cache.Outcome
	canonical normalize.PixelBuffer
}

// Normalize handles POST /api/v1/normalize.
func (s *Server) Normalize(c *gin.Context) {
	up, ok := s.readUpload(c)
	if !ok {
		return
	}

	res, err := s.normalize(up, s.gridFingerprint())
	if err != nil {
		s.logger.Warn("failed to normalize image", zap.String("md5", up.md5), zap.Error(err))
		fail(c, statusFor(err), "failed to normalize image", err)
		return
	}

	png, err := codec.Encode(res.canonical, codec.FormatPNG)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to encode canonical image", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "normalized",
		Data: NormalizeData{
			MD5:          res.outcome.MD5,
			Fingerprint:  res.outcome.Fingerprint,
			Box:          res.outcome.Box,
			Grid:         res.outcome.Grid,
			Stats:        res.outcome.Stats,
			CanonicalPNG: base64.StdEncoding.EncodeToString(png),
		},
	})
}

// Predict handles POST /api/v1/predict. Outcomes are cached per upload
// digest and prediction fingerprint.
func (s *Server) Predict(c *gin.Context) {
	if s.recognizer == nil {
		fail(c, http.StatusServiceUnavailable, "no recognizer configured", nil)
		return
	}

	up, ok := s.readUpload(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	fingerprint := s.predictionFingerprint()

	cached, err := s.store.Get(ctx, up.md5, fingerprint)
	if err != nil {
		s.logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil && cached.Prediction != nil {
		s.logger.Info("cache hit", zap.String("key", cache.Key(up.md5, fingerprint)))
		c.JSON(http.StatusOK, Response{Success: true, Message: "predicted (cached)", Data: PredictData{Outcome: cached, Cached: true}})
		return
	}

	res, err := s.normalize(up, fingerprint)
	if err != nil {
		s.logger.Warn("failed to normalize image", zap.String("md5", up.md5), zap.Error(err))
		fail(c, statusFor(err), "failed to normalize image", err)
		return
	}

	in, err := recognizer.NewInput(s.cfg.Recognizer, up.data, up.contentType, res.canonical, res.outcome.Grid)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to encode canonical image", err)
		return
	}
	pred, err := s.recognizer.Predict(ctx, in)
	if err != nil {
		s.logger.Error("recognizer failed",
			zap.String("backend", s.recognizer.Name()),
			zap.String("md5", up.md5),
			zap.Error(err))
		fail(c, http.StatusBadGateway, "recognizer failed", err)
		return
	}
	res.outcome.Prediction = &pred

	if err := s.store.Set(ctx, res.outcome); err != nil {
		s.logger.Warn("failed to set cache", zap.Error(err))
	}

	s.logger.Info("predicted digit",
		zap.String("md5", up.md5),
		zap.Int("digit", pred.Digit),
		zap.Float64("confidence", pred.Confidence),
		zap.String("backend", pred.Backend))

	c.JSON(http.StatusOK, Response{Success: true, Message: "predicted", Data: PredictData{Outcome: res.outcome}})
}

// GetResult handles GET /api/v1/result/:md5 for the current parameters and
// recognizer.
func (s *Server) GetResult(c *gin.Context) {
	md5 := c.Param("md5")
	if md5 == "" {
		fail(c, http.StatusBadRequest, "md5 parameter missing", nil)
		return
	}

	out, err := s.store.Get(c.Request.Context(), md5, s.predictionFingerprint())
	if err != nil {
		s.logger.Error("failed to get result", zap.Error(err))
		fail(c, http.StatusInternalServerError, "lookup failed", err)
		return
	}
	if out == nil {
		fail(c, http.StatusNotFound, "no result for this image", nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "found", Data: PredictData{Outcome: out, Cached: true}})
}

// readUpload enforces size and type limits before any decoding and writes
// the error response itself when it returns false.
func (s *Server) readUpload(c *gin.Context) (*upload, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "image file is required", err)
		return nil, false
	}
	if file.Size > s.cfg.Upload.MaxSize {
		fail(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d MB", s.cfg.Upload.MaxSize/(1024*1024)), errUploadTooLarge)
		return nil, false
	}

	declared := mediaType(file.Header.Get("Content-Type"))
	sniff := declared == "" || declared == "application/octet-stream"
	if !sniff && !s.isAllowedType(declared) {
		fail(c, http.StatusUnsupportedMediaType, "only JPEG and PNG are supported",
			fmt.Errorf("%w: %s", codec.ErrUnsupportedContentType, declared))
		return nil, false
	}

	data, err := readFile(file, s.cfg.Upload.MaxSize)
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read upload", err)
		return nil, false
	}

	contentType := declared
	if sniff {
		contentType = mediaType(codec.DetectContentType(data))
		if !s.isAllowedType(contentType) {
			fail(c, http.StatusUnsupportedMediaType, "only JPEG and PNG are supported",
				fmt.Errorf("%w: %s", codec.ErrUnsupportedContentType, contentType))
			return nil, false
		}
	}
	contentType = codec.CanonicalContentType(contentType)

	up := &upload{data: data, contentType: contentType, md5: cache.Digest(data)}
	s.logger.Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", up.md5),
		zap.Int64("size", file.Size),
		zap.String("content_type", contentType))
	return up, true
}

func readFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (s *Server) normalize(up *upload, fingerprint string) (*normalized, error) {
	params := s.normalizer.Params()
	buf, err := codec.Decode(up.data, up.contentType, params.Colors.Background)
	if err != nil {
		return nil, err
	}
	buf = codec.Downsample(buf, s.cfg.Upload.MaxSide)

	res, err := s.normalizer.Normalize(buf)
	if err != nil {
		return nil, err
	}
	return &normalized{
		outcome: &cache.Outcome{
			MD5:         up.md5,
			Fingerprint: fingerprint,
			Box:         res.Box,
			Grid:        res.Grid,
			Stats:       res.Grid.Stats(),
			CreatedAt:   time.Now().UTC(),
		},
		canonical: res.Canonical,
	}, nil
}

func (s *Server) gridFingerprint() string {
	return cache.GridFingerprint(s.normalizer.Params(), s.cfg.Upload.MaxSide)
}

// predictionFingerprint keys cached predictions. A server without a
// recognizer still answers result lookups, under the "none" backend.
func (s *Server) predictionFingerprint() string {
	backend := "none"
	if s.recognizer != nil {
		backend = s.recognizer.Name()
	}
	return cache.PredictionFingerprint(s.gridFingerprint(), backend, s.cfg.Recognizer)
}

// isAllowedType checks ct against the configured allow-list, which can only
// narrow what the codec supports.
func (s *Server) isAllowedType(ct string) bool {
	if !codec.IsSupported(ct) {
		return false
	}
	for _, allowed := range s.cfg.Upload.AllowedTypes {
		if strings.EqualFold(mediaType(allowed), ct) {
			return true
		}
	}
	return false
}

// mediaType lowercases ct and strips any parameters.
func mediaType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
