package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/crawler"
	"campus-crawler/pkg/models"
)

// Runner triggers crawl runs and reports on them. *orchestrate.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context) (models.RunResult, error)
	Progress() (crawler.Progress, bool)
	LastResult() *models.RunResult
}

// Server is the HTTP control endpoint with lifecycle management.
type Server struct {
	router     *gin.Engine
	server     *http.Server
	runner     Runner
	corpusPath string
	cfg        config.ServerConfig
	log        *logrus.Entry
	startTime  time.Time
}

// NewServer builds the router and the underlying http.Server.
func NewServer(cfg config.ServerConfig, corpusPath string, runner Runner, log *logrus.Entry) *Server {
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))

	s := &Server{
		router:     router,
		runner:     runner,
		corpusPath: corpusPath,
		cfg:        cfg,
		log:        log,
		startTime:  time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/api")
	api.GET("/scrape", s.scrape)
	api.GET("/status", s.status)
	api.GET("/corpus", s.corpus)
}

// Router returns the underlying Gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("address", s.server.Addr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.WithField("timeout", s.cfg.ShutdownTimeout).Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped gracefully")
	return <-errCh
}
