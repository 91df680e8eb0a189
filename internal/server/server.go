package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
)

// Service is the verification engine behind the HTTP API
type Service interface {
	Verify(ctx context.Context, text string, strategy model.Strategy, detail model.DetailLevel) (*model.VerificationResult, error)
	Analyze(text string) (*model.Claim, error)
	BatchVerify(ctx context.Context, texts []string, strategy model.Strategy, detail model.DetailLevel) ([]*worker.ClaimResult, error)
	SubmitFeedback(ctx context.Context, claimID string, verdict model.Verdict) (uint64, error)
}

// Options configure the HTTP layer
type Options struct {
	Logger         *zap.Logger
	Metrics        http.Handler // Served on /metrics when set
	AllowedOrigins []string     // Empty allows every origin
	RequestTimeout time.Duration
	Debug          bool
}

// Server exposes the verification and feedback APIs over HTTP
type Server struct {
	svc    Service
	router *gin.Engine
	logger *zap.Logger
}

// New builds the gin router
func New(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	s := &Server{svc: svc, router: router, logger: logger}

	router.GET("/healthz", s.health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(requestTimeout(opts.RequestTimeout))
	v1.POST("/verify", s.verify)
	v1.POST("/analyze", s.analyze)
	v1.POST("/batch", s.batch)
	v1.POST("/feedback", s.feedback)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
