// Package server exposes the detector over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/internal/cache"
	"github.com/hed1ad/streamguard/internal/config"
	"github.com/hed1ad/streamguard/pkg/detectors"
)

// Server routes detection requests and serves stored reports.
type Server struct {
	cfg      config.ServerConfig
	defaults detectors.Config
	store    cache.Store
	logger   *zap.Logger
	metrics  *Metrics
	router   *mux.Router
}

// New creates a Server. defaults fill in detector parameters a request omits.
func New(cfg config.ServerConfig, defaults detectors.Config, store cache.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}

	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		store:    store,
		logger:   logger,
		metrics:  NewMetrics(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metrics.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}/plot.png", s.handlePlot).Methods(http.MethodGet)

	r.Path("/metrics").Handler(s.metrics.Handler())

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.cfg.Addr,
		Handler:        s.router,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server exited")
	return nil
}
