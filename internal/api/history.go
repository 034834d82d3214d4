package api

import (
	"net/http"

	"github.com/adhit-r/fairmind-sub003/internal/store"
)

const maxHistoryLimit = 100

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		orgID = s.defaultOrg
	}
	limit := parseIntQuery(r, "limit", store.DefaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = store.DefaultHistoryLimit
	}

	h, err := s.history.Recent(r.Context(), orgID, limit)
	if err != nil {
		s.logger.Error("fetch history", "org_id", orgID, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to fetch run history")
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}
