package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/scanctl/internal/audit"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action type (register, dispatch, macro_save, ...)
//   - entity_type: filter by entity type (controller, unit, macro, run)
//   - entity_id: filter by specific entity ID
//   - operator: filter by operator username
//   - source: filter by source (api, cli)
//   - since, until: RFC 3339 time window
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	repo := s.console.Audit()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Operator:   q.Get("operator"),
		Source:     q.Get("source"),
	}
	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, name+" must be an RFC 3339 timestamp")
			return
		}
		*dst = t
	}
	filter.Limit, filter.Offset = pagination(q.Get("limit"), q.Get("offset"))

	result, err := repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
