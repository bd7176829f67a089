package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spounge-ai/parishvault/internal/infra/config"
	"github.com/spounge-ai/parishvault/pkg/patterns/lifecycle"
)

// Server is the HTTP listener as a managed resource.
type Server struct {
	httpServer *http.Server
	lis        net.Listener
	logger     *slog.Logger
	serving    atomic.Bool
}

var _ lifecycle.ManagedResource = (*Server)(nil)

// New binds the listener immediately so the chosen port is known before
// Start. A zero port picks a free one.
func New(cfg config.ServerConfig, handler http.Handler, tlsConfig *tls.Config, logger *slog.Logger) (*Server, int, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to listen: %w", err)
	}
	if tlsConfig != nil {
		lis = tls.NewListener(lis, tlsConfig)
	}

	port := lis.Addr().(*net.TCPAddr).Port

	return &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		lis:    lis,
		logger: logger,
	}, port, nil
}

func (s *Server) Name() string { return "http-server" }

func (s *Server) Start(_ context.Context) error {
	if !s.serving.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("HTTP server listening", "address", s.lis.Addr().String())
	go func() {
		if err := s.httpServer.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", "error", err)
		}
		s.serving.Store(false)
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.serving.Store(false)
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) Health(_ context.Context) lifecycle.HealthStatus {
	if s.serving.Load() {
		return lifecycle.HealthStatus{Ready: true}
	}
	return lifecycle.HealthStatus{Ready: false, Message: "not serving"}
}
