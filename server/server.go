// Package server exposes the vault over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/vault"
)

// DefaultMaxUploadBytes caps the size of a single uploaded file.
const DefaultMaxUploadBytes = 256 << 20

// Options configure a Server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Gatherer backs GET /metrics; the endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the HTTP boundary of the vault.
type Server struct {
	vault     *vault.Vault
	engine    *gin.Engine
	http      *http.Server
	log       *zap.Logger
	maxUpload int64
}

// New builds a Server and its routes.
func New(v *vault.Vault, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Minute
	}

	engine := gin.New()
	engine.MaxMultipartMemory = 32 << 20
	s := &Server{
		vault:     v,
		engine:    engine,
		log:       opts.Logger.Named("http"),
		maxUpload: opts.MaxUploadBytes,
	}
	engine.Use(s.requestLogger(), gin.Recovery())

	engine.GET("/healthz", s.handleHealth)
	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	assets := engine.Group("/assets")
	{
		assets.POST("", s.handleUpload)
		assets.GET("", s.handleList)
		assets.GET("/:id/download", s.handleDownload)
		assets.POST("/:id/token", s.handleIssueToken)
	}

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
