package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/conductor/internal/catalog"
	"github.com/seantiz/conductor/internal/engine"
	"github.com/seantiz/conductor/internal/model"
)

// runResponse is the JSON response for POST /v1/run.
type runResponse struct {
	OK     bool         `json:"ok"`
	Error  string       `json:"error,omitempty"`
	Status model.Status `json:"status,omitempty"`
}

// stopRequest is the JSON body of POST /v1/stop.
type stopRequest struct {
	ExecutionID string `json:"executionId"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req engine.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, runResponse{Error: "invalid JSON body"})
		return
	}

	ex, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		status, msg := submitErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("submit execution", "execution_id", req.ExecutionID, "error", err)
		}
		s.writeJSON(w, status, runResponse{Error: msg})
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{OK: true, Status: ex.Status})
}

// submitErrorStatus maps a Submit error to an HTTP status and message.
func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidProject):
		return http.StatusBadRequest, "Invalid projectId"
	case errors.Is(err, catalog.ErrInvalidScenario):
		return http.StatusBadRequest, "Invalid scenarioId"
	case errors.Is(err, catalog.ErrInvalidEnvironment):
		return http.StatusBadRequest, "Invalid environmentId"
	case errors.Is(err, engine.ErrMissingExecutionID):
		return http.StatusBadRequest, "Missing executionId"
	case errors.Is(err, engine.ErrDuplicateID):
		return http.StatusConflict, "executionId already used"
	case errors.Is(err, engine.ErrShuttingDown):
		return http.StatusServiceUnavailable, "server is shutting down"
	default:
		return http.StatusInternalServerError, "failed to submit execution"
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res := s.engine.Stop(req.ExecutionID)
	if res.Stopped {
		s.logger.Info("execution stopped", "execution_id", req.ExecutionID, "where", res.Where)
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ex, err := s.engine.Get(id)
	if errors.Is(err, engine.ErrUnknownExecution) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		s.logger.Error("get execution", "execution_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	s.writeJSON(w, http.StatusOK, ex)
}
