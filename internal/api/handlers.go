package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dellis86/sidekick/internal/backend"
	"github.com/dellis86/sidekick/internal/stream"
)

// statusResponse is the payload for GET /api/v1/status.
type statusResponse struct {
	SessionID string           `json:"session_id"`
	Version   string           `json:"version"`
	BaseURL   string           `json:"base_url"`
	UptimeSec int64            `json:"uptime_seconds"`
	Backend   backend.Snapshot `json:"backend"`
	Stream    stream.Snapshot  `json:"stream"`
}

// handleHealth reports liveness of the shim itself.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStatus reports the supervisor and stream state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID: s.sessionID,
		Version:   s.version,
		BaseURL:   s.baseURL,
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Backend:   s.supervisor.Snapshot(),
		Stream:    s.stream.Snapshot(),
	})
}

// handleEvents returns recent journal entries, newest first.
// Query: limit (optional, positive integer).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeNotFound(w, "event journal is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("querying journal events", "error", err)
		writeInternalError(w, "querying events failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(entries),
		"events": entries,
	})
}
