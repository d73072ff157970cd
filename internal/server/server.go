// Package server exposes the normalizer and recognizer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"digitprep/internal/cache"
	"digitprep/internal/config"
	"digitprep/internal/normalize"
	"digitprep/internal/recognizer"
	"digitprep/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg        *config.Config
	normalizer *normalize.Normalizer
	recognizer recognizer.Recognizer
	store      cache.Store
	logger     *zap.Logger
}

// New wires the server. rec may be nil, in which case prediction answers 503;
// store may be nil, in which case nothing is cached.
func New(cfg *config.Config, n *normalize.Normalizer, rec recognizer.Recognizer, store cache.Store, logger *zap.Logger) *Server {
	if store == nil {
		store = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, normalizer: n, recognizer: rec, store: store, logger: logger}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.cfg.Upload.MaxSize
	r.Use(gin.Recovery())
	r.Use(Logger(s.logger))
	r.Use(CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
		})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})

	api := r.Group("/api/v1")
	{
		api.POST("/normalize", s.Normalize)
		api.POST("/predict", s.Predict)
		api.GET("/result/:md5", s.GetResult)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(s.cfg.Server.Mode)

	srv := &http.Server{
		Addr:         s.cfg.Server.Port,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", s.cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
