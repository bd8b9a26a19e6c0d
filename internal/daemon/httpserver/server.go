// Package httpserver serves health, metrics and part listings for partsd.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacoelho/partstore/log"
)

// PartInfo describes a stored part in the /parts listing.
type PartInfo struct {
	Name string   `json:"name"`
	Keys []string `json:"keys,omitempty"`
}

// Config holds the server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Server is a part that listens while the application runs.
//
// Endpoints:
//   - GET /healthz: Liveness probe
//   - GET /metrics: Prometheus metrics from the configured gatherer
//   - GET /parts: Stored parts in start order
type Server struct {
	config   Config
	server   *http.Server
	logger   log.Logger
	stopOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// New creates a stopped server. parts is called on every /parts request.
func New(config Config, gatherer prometheus.Gatherer, parts func() []PartInfo, logger log.Logger) *Server {
	config.applyDefaults()

	s := &Server{
		config: config,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      newRouter(gatherer, parts),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func newRouter(gatherer prometheus.Gatherer, parts func() []PartInfo) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/parts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, parts())
	})
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("http server listening", log.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", log.Err(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http server shutdown: %w", shutdownErr)
			return
		}
		s.logger.Info("http server stopped")
	})
	return err
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}
