package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/stockboard/pkg/config"
	"github.com/wonny/stockboard/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a new API server.
// WriteTimeout covers a cold dataset build, which paces upstream calls.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		config: cfg,
		ready:  make(chan struct{}),
	}
}

// Start binds the port and serves until Shutdown.
// PORT=0 picks a free port; Addr reports it once Ready is closed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Ready is closed once the listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// OnShutdown registers fn to run when Shutdown begins
func (s *Server) OnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// Shutdown stops accepting connections and waits for in-flight requests
// (a dataset build may still be running) until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	start := time.Now()
	log := s.logger.WithField("addr", s.Addr())
	if deadline, ok := ctx.Deadline(); ok {
		log = log.WithField("grace", time.Until(deadline).Round(time.Second).String())
	}
	log.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).WithField("waited", time.Since(start).String()).Warn("In-flight requests did not finish")
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.WithField("waited", time.Since(start).String()).Info("API server stopped")
	return nil
}
