// Package api exposes the analyzer over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/logging"
	"github.com/seo-optimizer/siteanalyzer/middleware"
	"github.com/seo-optimizer/siteanalyzer/orchestrator"
	"github.com/seo-optimizer/siteanalyzer/progress"
	"github.com/seo-optimizer/siteanalyzer/report"
	"github.com/seo-optimizer/siteanalyzer/stats"
)

// Runner starts and cancels analyses. orchestrator.Orchestrator implements
// it.
type Runner interface {
	Run(ctx context.Context, domain string, opts orchestrator.Options, userID string) (*report.AnalysisResult, error)
	Cancel(domain string) bool
}

// AnalysisReader loads stored analyses.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, id string) (*report.AnalysisResult, error)
}

// Config wires the server. Analyses, Visitors, RunStats and Limiter are
// optional.
type Config struct {
	Runner      Runner
	Tracker     *progress.Tracker
	Analyses    AnalysisReader
	Visitors    *logging.Statistics
	RunStats    *stats.Storage
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	// Heartbeat is the interval of keep-alive events on progress streams.
	Heartbeat time.Duration
	Logger    logrus.FieldLogger
}

// Server holds the handlers' dependencies.
type Server struct {
	cfg Config
	log logrus.FieldLogger
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	return &Server{cfg: cfg, log: cfg.Logger}
}

// Router builds the gin engine with middlewares and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(logging.GinLogger(s.log))
	r.Use(middleware.ErrorHandler(s.log))
	r.Use(middleware.CORS(s.cfg.CORSOrigins...))
	if s.cfg.Limiter != nil {
		r.Use(s.cfg.Limiter.RateLimit())
	}
	if s.cfg.Visitors != nil {
		r.Use(middleware.Stats(s.cfg.Visitors, s.log))
	}

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.POST("/analyze", s.analyze)
		api.GET("/progress/:domain", s.progress)
		api.POST("/cancel/:domain", s.cancel)
		api.GET("/statistics", s.statistics)
		api.GET("/analyses/:id", s.analysis)
	}
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}
