package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownGrace bounds how long in-flight requests may run after a stop
// signal. Time-locked requests longer than this are abandoned; their lock
// rows stay behind for the restarted process.
const shutdownGrace = 10 * time.Second

// Server runs the proxy listener and, when configured, a separate metrics
// listener. The proxy surface carries only the pipeline; health and metrics
// never shadow an upstream path.
type Server struct {
	addr        string
	metricsAddr string
	handler     http.Handler
	registry    *prometheus.Registry
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the proxy listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithMetricsAddr enables the metrics listener on addr, exposing /metrics
// and /-/healthy. Empty keeps it disabled.
func WithMetricsAddr(addr string) Option {
	return func(s *Server) { s.metricsAddr = addr }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer builds a server around the proxy handler. registry may be nil
// when no metrics listener is configured.
func NewServer(handler http.Handler, registry *prometheus.Registry, opts ...Option) *Server {
	s := &Server{
		addr:     "127.0.0.1:8080",
		handler:  handler,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	proxySrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("proxy listening", slog.String("addr", s.addr))
		if err := proxySrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("proxy listener: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if s.metricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              s.metricsAddr,
			Handler:           s.metricsMux(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			s.logger.Info("metrics listening", slog.String("addr", s.metricsAddr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err := proxySrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		if merr := metricsSrv.Shutdown(shutdownCtx); err == nil {
			err = merr
		}
	}
	return err
}

func (s *Server) metricsMux() *http.ServeMux {
	reg := s.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/-/healthy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}
