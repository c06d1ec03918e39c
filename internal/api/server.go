// Package api exposes the analyzer over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"farewatch/internal/config"
	"farewatch/internal/logging"
	"farewatch/internal/metrics"
	"farewatch/internal/service"
)

// Server hosts the REST API.
type Server struct {
	cfg      config.HTTPConfig
	analyzer *service.Analyzer
	router   *gin.Engine
	logger   zerolog.Logger
}

// New builds the router and registers every route.
func New(cfg config.HTTPConfig, analyzer *service.Analyzer, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		router:   gin.New(),
		logger:   logging.Component(logger, "http"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(corsMiddleware(s.cfg.AllowedOrigin))
	s.router.Use(metrics.Middleware())
	s.router.Use(loggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/api/v1")
	v1.POST("/detect-fraud", s.detectFraudHandler)
	v1.GET("/transactions", s.listTransactionsHandler)
	v1.GET("/transactions/:ticketId", s.getTransactionHandler)
	v1.PATCH("/transactions/:ticketId/status", s.updateStatusHandler)
	v1.GET("/stats", s.statsHandler)
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
