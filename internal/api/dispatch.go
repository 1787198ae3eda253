package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
	"github.com/nerrad567/scanctl/internal/macro"
)

// broadcastRequest optionally names a global macro to send to every enabled
// scan unit. Without one each controller gets its own current selections.
type broadcastRequest struct {
	Macro string `json:"macro,omitempty"`
	Label string `json:"label,omitempty"`
}

// handleDispatchStatus reports whether a run is in flight.
func (s *Server) handleDispatchStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"sending": false}
	if run := s.console.Engine().Active(); run != nil {
		resp["sending"] = true
		resp["run_id"] = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBroadcast starts a run over every enabled scan unit.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())
	actor := actorFromRequest(r)

	var (
		run *dispatch.Run
		err error
	)
	if req.Macro != "" {
		run, err = s.console.BroadcastMacro(ctx, actor, macro.Global, req.Macro)
	} else {
		run, err = s.console.Broadcast(ctx, actor, nil, req.Label)
	}
	if err != nil {
		s.writeDomainError(w, "broadcast", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": run.ID,
		"status": "running",
	})
}

// handleCancel stops the active run. Cancelling when idle is not an error.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled := s.console.Cancel(r.Context(), actorFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

// handleListRuns returns recorded runs, newest first.
//
// Query parameters:
//   - status: completed, partial, failed, cancelled
//   - source: api, cli, mqtt
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	repo := s.console.History()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run history not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Status: dispatch.Status(q.Get("status")),
		Source: q.Get("source"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	filter.Limit, filter.Offset = pagination(q.Get("limit"), q.Get("offset"))

	result, err := repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetRun returns one run with its per-entry results.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	repo := s.console.History()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run history not configured")
		return
	}

	run, err := repo.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// pagination parses limit and offset query values. Invalid values are
// ignored; repositories apply their own defaults and bounds.
func pagination(limit, offset string) (int, int) {
	var l, o int
	if n, err := strconv.Atoi(limit); err == nil {
		l = n
	}
	if n, err := strconv.Atoi(offset); err == nil {
		o = n
	}
	return l, o
}
