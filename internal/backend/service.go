package backend

import (
	"context"

	"github.com/dellis86/sidekick/internal/stream"
)

// Service ties the supervisor and the stream client together behind the
// single entry point commands call before doing anything else.
type Service struct {
	baseURL    string
	supervisor *Supervisor
	stream     *stream.Client
}

// NewService creates the orchestrating service for the given backend
// base URL.
func NewService(baseURL string, supervisor *Supervisor, client *stream.Client) *Service {
	return &Service{
		baseURL:    baseURL,
		supervisor: supervisor,
		stream:     client,
	}
}

// EnsureReady brings the backend up if needed and makes sure the event
// stream is connected or connecting. It never returns an error; every
// failure is logged and recovered internally, and callers proceed with
// their own requests which fail on their own terms if the backend stays
// unreachable.
func (s *Service) EnsureReady(ctx context.Context) {
	s.supervisor.EnsureRunning(ctx)
	s.stream.EnsureConnected(s.baseURL)
}

// Shutdown tears the session down: the stream is closed manually so no
// reconnect fires, and the backend process is stopped if we started it.
// Best-effort throughout; Shutdown always completes.
func (s *Service) Shutdown() {
	s.stream.Close(true)
	s.supervisor.Stop()
}

// Supervisor exposes the process supervisor for introspection.
func (s *Service) Supervisor() *Supervisor {
	return s.supervisor
}

// Stream exposes the stream client for introspection.
func (s *Service) Stream() *stream.Client {
	return s.stream
}

// BaseURL returns the backend base URL the service targets.
func (s *Service) BaseURL() string {
	return s.baseURL
}
