// Package server is the HTTP service deployed onto the cluster. It reports
// its own health, the host's resource usage and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	AppName     = "EKS CloudForge"
	APIName     = "EKS CloudForge API"
	Version     = "1.0.0"
	containerID = "eks-cloudforge-app"
)

// Endpoints lists every route, in the order shown to clients.
var Endpoints = []string{"/", "/health", "/status", "/metrics", "/prometheus", "/api/info"}

type Server struct {
	cfg      Config
	sampler  Sampler
	logger   *slog.Logger
	now      func() time.Time
	start    time.Time
	hostname string

	requests atomic.Int64
	registry *prometheus.Registry
	http     *httpMetrics
	handler  http.Handler
}

type Option func(*Server)

// WithClock replaces time.Now. The start time is read from it.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithHostname(name string) Option {
	return func(s *Server) { s.hostname = name }
}

func New(cfg Config, sampler Sampler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		sampler: sampler,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hostname == "" {
		s.hostname, _ = os.Hostname()
	}
	s.start = s.now()

	s.registry = prometheus.NewRegistry()
	s.http = newHTTPMetrics(s.registry)
	s.registry.MustRegister(newAppCollector(s))

	s.handler = s.instrument(s.routes())
	return s
}

// Handler serves every route with request counting, logging and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Requests is the number of requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) uptime() time.Duration {
	return s.now().Sub(s.start)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"instance_type", s.cfg.InstanceType,
			"cluster", s.cfg.ClusterName,
			"metrics_path", "/prometheus")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("shutting down", "requests_processed", s.requests.Load())
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
