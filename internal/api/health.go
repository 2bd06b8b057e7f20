package api

import (
	"net/http"

	"github.com/seantiz/conductor/internal/model"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// healthResponse reports liveness together with the engine's capacity and
// whether the history database answers.
type healthResponse struct {
	Status  string      `json:"status"`
	History string      `json:"history"`
	Stats   model.Stats `json:"stats"`
	Error   string      `json:"error,omitempty"`
}

// handleHealthz answers 503 when the history store cannot be queried, since
// finished executions could not be recorded.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  healthOK,
		History: healthOK,
		Stats:   s.engine.Stats(),
	}

	if _, err := s.history.Count(r.Context()); err != nil {
		s.logger.Warn("health check: history store unavailable", "error", err)
		resp.Status = healthDegraded
		resp.History = "unavailable"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
