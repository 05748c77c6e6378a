package observability

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager coordinates graceful shutdown of the service
type ShutdownManager struct {
	logger   *Logger
	timeout  time.Duration
	mu       sync.Mutex
	handlers []shutdownHandler
}

type shutdownHandler struct {
	name string
	fn   func(ctx context.Context) error
}

// NewShutdownManager creates a shutdown manager with the given drain timeout
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named shutdown handler. Handlers run in registration
// order during shutdown.
func (s *ShutdownManager) Register(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, shutdownHandler{name: name, fn: fn})
}

// RegisterServer registers an HTTP server for graceful shutdown
func (s *ShutdownManager) RegisterServer(name string, server *http.Server) {
	s.Register(name, server.Shutdown)
}

// Wait blocks until SIGINT or SIGTERM, then runs all registered handlers
// within the drain timeout.
func (s *ShutdownManager) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	s.logger.WithField("signal", sig.String()).Info("shutdown signal received")
	s.Shutdown()
}

// Shutdown runs all registered handlers within the drain timeout
func (s *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	handlers := make([]shutdownHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			s.logger.WithError(err).WithField("component", h.name).Error("shutdown handler failed")
			continue
		}
		s.logger.WithFields(map[string]interface{}{
			"component": h.name,
			"duration":  time.Since(start).String(),
		}).Info("component shut down")
	}

	s.logger.Info("shutdown complete")
}
