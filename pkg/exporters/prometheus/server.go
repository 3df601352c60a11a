// Package prometheus serves the probe's metrics endpoint. The counters
// themselves live in pkg/metrics and are registered on the default
// registry; this package only owns the HTTP listener.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/types"
)

// Server exposes Prometheus metrics over HTTP.
type Server struct {
	config     *types.PrometheusExporterConfig
	httpServer *http.Server
	mu         sync.Mutex
	started    bool
}

// NewServer creates a metrics server from its configuration.
func NewServer(config *types.PrometheusExporterConfig) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !config.Enabled {
		return nil, fmt.Errorf("prometheus exporter is disabled")
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}

	return &Server{config: config}, nil
}

// Start begins serving metrics in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("metrics server already started")
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("metrics server listening on %s%s", addr, s.config.Path)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Errorf("metrics server failed")
		}
	}()

	s.started = true
	return nil
}

// Stop shuts the metrics server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	return s.httpServer.Shutdown(ctx)
}
