package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"geneticdfa/internal/metrics"
)

// MetricsServer is a support module serving Prometheus metrics over HTTP.
type MetricsServer struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func (s *MetricsServer) Name() string {
	return "metrics_http"
}

func (s *MetricsServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(s.Gatherer))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	s.server = server
	s.listener = listener
	s.done = done
	logger.Info("metrics server listening", slog.String("addr", listener.Addr().String()))
	return nil
}

// BoundAddr reports the listening address, useful when Addr used port 0.
func (s *MetricsServer) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *MetricsServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, done := s.server, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-done
	return err
}
