package api

import (
	"fmt"
	"net/http"

	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/store"
)

// defaultHistoryLimit is the page size of GET /v1/history without ?limit.
const defaultHistoryLimit = 60

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := store.ClampLimit(parseIntQuery(r, "limit", defaultHistoryLimit))

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	format, err := store.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.history.All(r.Context())
	if err != nil {
		s.logger.Error("export history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == store.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="history.%s"`, format))
	w.WriteHeader(http.StatusOK)

	if err := store.Export(w, format, records); err != nil {
		s.logger.Error("write history export", "format", format, "error", err)
	}
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context()); err != nil {
		s.logger.Error("clear history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
