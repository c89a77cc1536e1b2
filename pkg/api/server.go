// Package api provides the HTTP/WebSocket server for driving simulation
// batches remotely. It exposes REST endpoints for starting, listing,
// controlling and exporting runs, and a websocket stream of engine events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/logging"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	router     *Router
	config     *ServerConfig
	logger     *slog.Logger

	// mu protects server state
	mu      sync.RWMutex
	running bool
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Host is the interface to bind to (default: "localhost")
	Host string `yaml:"host" json:"host"`

	// Port is the port to listen on (default: 8081)
	Port int `yaml:"port" json:"port"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// CORSOrigins is a list of allowed origins for CORS requests
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// EnableLogging enables request logging middleware
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
}

// DefaultServerConfig returns sensible defaults for the API server.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:          "localhost",
		Port:          8081,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		CORSOrigins:   []string{"http://localhost:5173"}, // Vite dev server
		EnableLogging: true,
	}
}

// NewServer creates a new API server with the given configuration.
func NewServer(config *ServerConfig, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	// Apply defaults for zero values
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 8081
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 15 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}

	return &Server{
		router: NewRouter(),
		config: config,
		logger: logging.OrDefault(logger),
	}
}

// Address returns the server address in host:port format.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Router returns the underlying router for registering handlers.
func (s *Server) Router() *Router {
	return s.router
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// OriginChecker returns the websocket origin policy matching the CORS
// origins, or nil when every origin is accepted.
func (s *Server) OriginChecker() func(*http.Request) bool {
	if len(s.config.CORSOrigins) == 0 {
		return nil
	}
	return makeOriginChecker(s.config.CORSOrigins)
}

// Handler returns the router wrapped in the configured middleware.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router

	// Apply middleware in reverse order (last added is outermost)
	if len(s.config.CORSOrigins) > 0 {
		handler = CORSMiddleware(s.config.CORSOrigins)(handler)
	}
	if s.config.EnableLogging {
		handler = LoggingMiddleware(s.logger)(handler)
	}
	handler = RequestIDMiddleware(handler)
	return RecoveryMiddleware(s.logger)(handler)
}

// Start starts the HTTP server in a goroutine.
// It returns immediately after starting. Use Shutdown() to stop it.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.running = true

	// Use error channel to detect binding failures
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[api] starting server", "addr", s.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("[api] server error", "error", err)
			errCh <- err
		}
		close(errCh)
	}()

	// Wait briefly to catch immediate binding errors (e.g., port in use)
	select {
	case err := <-errCh:
		s.running = false
		if err == nil {
			return nil
		}
		return cerrors.NetworkWrap(err, cerrors.ErrNetworkListenFailed, "server failed to start").
			WithContext("address", s.Address())
	case <-time.After(100 * time.Millisecond):
		// Server likely started successfully
		return nil
	}
}

// Shutdown gracefully shuts down the server with a timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("[api] shutting down server")
	s.running = false

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// makeOriginChecker creates a function that validates WebSocket origins
// against the configured CORS origins list.
func makeOriginChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No origin header (same-origin request) - allow
			return true
		}
		return allowed[origin]
	}
}
