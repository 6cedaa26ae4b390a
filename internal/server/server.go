// Package server exposes the transcription engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sermohq/sermo/internal/whisper"
)

// Transcriber runs inference for one model.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error)
}

// EngineSource hands out transcribers by model identifier.
type EngineSource interface {
	Get(model string) (Transcriber, error)
}

// Config wires the service.
type Config struct {
	Addr    string
	Engines EngineSource
	Logger  *zap.Logger
	// MaxUploadMB is the default upload limit; requests may lower or
	// raise it per call up to the hard cap. Zero means the built-in
	// default.
	MaxUploadMB int
}

// Service is the HTTP front-end around the engine cache.
type Service struct {
	cfg    Config
	logger *zap.Logger
	router *gin.Engine
}

// New builds the service and its routes.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	s := &Service{cfg: cfg, logger: cfg.Logger, router: router}
	s.initRouter()
	return s
}

// FromCache adapts an engine cache to the EngineSource interface.
func FromCache(cache *whisper.Cache) EngineSource {
	return cacheSource{cache: cache}
}

type cacheSource struct {
	cache *whisper.Cache
}

func (s cacheSource) Get(model string) (Transcriber, error) {
	engine, err := s.cache.Get(model)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// Handler exposes the router for tests and embedding.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http api listening", zap.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Service) initRouter() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1")
	v1.POST("/transcribe", s.handleTranscribe)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("client", c.ClientIP()),
		)
	}
}
