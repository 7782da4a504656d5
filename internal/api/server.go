// Package api provides the local introspection HTTP API for the shim.
//
// It binds to loopback only and exposes the supervisor and stream state,
// recent journal entries, and a health endpoint. The server follows the
// same lifecycle pattern as the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dellis86/sidekick/internal/backend"
	"github.com/dellis86/sidekick/internal/infrastructure/config"
	"github.com/dellis86/sidekick/internal/infrastructure/logging"
	"github.com/dellis86/sidekick/internal/journal"
	"github.com/dellis86/sidekick/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Request timeouts for the loopback listener.
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// EventSource provides recent journal entries for the events endpoint.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Supervisor *backend.Supervisor
	Stream     *stream.Client
	Events     EventSource // optional; nil disables /api/v1/events
	BaseURL    string
	SessionID  string
	Version    string
}

// Server is the local HTTP API server.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	supervisor *backend.Supervisor
	stream     *stream.Client
	events     EventSource
	baseURL    string
	sessionID  string
	version    string
	startedAt  time.Time

	server *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.Stream == nil {
		return nil, fmt.Errorf("stream client is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		stream:     deps.Stream,
		events:     deps.Events,
		baseURL:    deps.BaseURL,
		sessionID:  deps.SessionID,
		version:    deps.Version,
		startedAt:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("api server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
