// Package health provides HTTP liveness and readiness endpoints for the
// probe process. This is a lightweight standalone server; the event path
// does not depend on it.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/supporttools/probe-doctor/pkg/logger"
)

// StatsProvider supplies the operational counters reported by /status.
// Implemented by detector.ProbeDetector via a small adapter in main.
type StatsProvider interface {
	// Stats returns a JSON-marshalable snapshot of runtime counters.
	Stats() interface{}
}

// Config contains configuration for the health server.
type Config struct {
	// Enabled controls whether the health server runs.
	Enabled bool

	// BindAddress is the address to bind to (default 0.0.0.0).
	BindAddress string

	// Port is the port to listen on (default 8080).
	Port int

	// ReadTimeout and WriteTimeout bound HTTP request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server provides /healthz, /ready and /status endpoints.
type Server struct {
	config     *Config
	httpServer *http.Server
	stats      StatsProvider
	mu         sync.RWMutex
	started    bool
	ready      bool
	startTime  time.Time
}

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// ReadinessResponse is the JSON body of /ready.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Healthy bool        `json:"healthy"`
	Ready   bool        `json:"ready"`
	Uptime  string      `json:"uptime"`
	Stats   interface{} `json:"stats,omitempty"`
}

// NewServer creates a health server. The stats provider may be nil, in
// which case /status omits counters.
func NewServer(config *Config, stats StatsProvider) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &Server{
		config:    config,
		stats:     stats,
		startTime: time.Now(),
	}, nil
}

// Start begins serving health endpoints in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("health server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)

	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		logger.Infof("health server listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Errorf("health server failed")
		}
	}()

	s.started = true
	return nil
}

// Stop shuts the health server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	return s.httpServer.Shutdown(ctx)
}

// SetReady marks the probe as ready (monitors started) or not.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady reports the current readiness state.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.IsReady()

	resp := ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC(),
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
		resp.Message = "monitors not started"
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Healthy: true,
		Ready:   s.IsReady(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.stats != nil {
		resp.Stats = s.stats.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Warnf("failed to encode health response")
	}
}
