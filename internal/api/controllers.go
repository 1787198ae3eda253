package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scanctl/internal/macro"
	"github.com/nerrad567/scanctl/internal/registry"
)

// ─── Request/Response Types ────────────────────────────────────────

// commandStateBody is the wire form of registry.CommandState. Delays travel
// as milliseconds.
type commandStateBody struct {
	Enabled     bool   `json:"enabled"`
	Option      string `json:"option,omitempty"`
	Repetitions int    `json:"repetitions"`
	DelayMS     int64  `json:"delay_ms"`
}

func (b commandStateBody) state() registry.CommandState {
	return registry.CommandState{
		Enabled:     b.Enabled,
		Option:      b.Option,
		Repetitions: b.Repetitions,
		Delay:       time.Duration(b.DelayMS) * time.Millisecond,
	}
}

func newCommandStateBody(st registry.CommandState) commandStateBody {
	return commandStateBody{
		Enabled:     st.Enabled,
		Option:      st.Option,
		Repetitions: st.Repetitions,
		DelayMS:     st.Delay.Milliseconds(),
	}
}

func commandStateBodies(in map[string]registry.CommandState) map[string]commandStateBody {
	out := make(map[string]commandStateBody, len(in))
	for name, st := range in {
		out[name] = newCommandStateBody(st)
	}
	return out
}

func commandStates(in map[string]commandStateBody) map[string]registry.CommandState {
	out := make(map[string]registry.CommandState, len(in))
	for name, b := range in {
		out[name] = b.state()
	}
	return out
}

// controllerView is a controller as returned by the API.
type controllerView struct {
	Address   string                      `json:"address"`
	Source    string                      `json:"source,omitempty"`
	Interface string                      `json:"interface,omitempty"`
	Label     string                      `json:"label,omitempty"`
	Commands  map[string]commandStateBody `json:"commands"`
	Units     []int                       `json:"units"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (s *Server) controllerView(c registry.Controller) controllerView {
	units := s.console.Registry().UnitsForController(c.Address)
	if units == nil {
		units = []int{}
	}
	return controllerView{
		Address:   c.Address,
		Source:    c.Source,
		Interface: c.Interface,
		Label:     c.Label,
		Commands:  commandStateBodies(c.Commands),
		Units:     units,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type registerControllerRequest struct {
	Address   string `json:"address"`
	Source    string `json:"source,omitempty"`
	Interface string `json:"interface,omitempty"`
	Label     string `json:"label,omitempty"`
}

type updateControllerRequest struct {
	Label *string `json:"label"`
}

type setCommandStateRequest struct {
	Group string `json:"group"`
	commandStateBody
}

// sendRequest optionally names a macro to send instead of the controller's
// current selections. Scope is "controller" (default) or "global".
type sendRequest struct {
	Macro string `json:"macro,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListControllers returns every registered controller in address order.
func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	controllers := s.console.Registry().Controllers()
	views := make([]controllerView, 0, len(controllers))
	for _, c := range controllers {
		views = append(views, s.controllerView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": views,
		"count":       len(views),
	})
}

// handleRegisterController adds a controller to the registry.
func (s *Server) handleRegisterController(w http.ResponseWriter, r *http.Request) {
	var req registerControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}

	c, err := s.console.RegisterController(r.Context(), actorFromRequest(r), registry.Controller{
		Address:   req.Address,
		Source:    req.Source,
		Interface: req.Interface,
		Label:     req.Label,
	})
	if err != nil {
		s.writeDomainError(w, "register controller", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.controllerView(c))
}

// handleGetController returns a single controller.
func (s *Server) handleGetController(w http.ResponseWriter, r *http.Request) {
	c, err := s.console.Registry().Controller(pathParam(r, "address"))
	if err != nil {
		s.writeDomainError(w, "get controller", err)
		return
	}
	writeJSON(w, http.StatusOK, s.controllerView(c))
}

// handleUpdateController patches a controller's label.
func (s *Server) handleUpdateController(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	var req updateControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Label == nil {
		writeBadRequest(w, "nothing to update")
		return
	}

	if err := s.console.UpdateLabel(r.Context(), actorFromRequest(r), address, *req.Label); err != nil {
		s.writeDomainError(w, "update controller", err)
		return
	}
	s.handleGetController(w, r)
}

// handleUnregisterController removes a controller with its macros and unit bindings.
func (s *Server) handleUnregisterController(w http.ResponseWriter, r *http.Request) {
	if err := s.console.UnregisterController(r.Context(), actorFromRequest(r), pathParam(r, "address")); err != nil {
		s.writeDomainError(w, "unregister controller", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCommandState records one command group selection.
func (s *Server) handleSetCommandState(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	var req setCommandStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Group == "" {
		writeBadRequest(w, "group is required")
		return
	}

	if err := s.console.SetCommandState(r.Context(), actorFromRequest(r), address, req.Group, req.state()); err != nil {
		s.writeDomainError(w, "set command state", err)
		return
	}
	s.handleGetController(w, r)
}

// handleSendToController starts a run for one controller. The response is
// sent once the run has started; progress arrives over the WebSocket.
func (s *Server) handleSendToController(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	var req sendRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	var cfg *macro.Config
	if req.Macro != "" {
		scope := macro.ForController(address)
		switch req.Scope {
		case "", "controller":
		case "global":
			scope = macro.Global
		default:
			writeBadRequest(w, "scope must be controller or global")
			return
		}
		loaded, err := s.console.Macros().Load(scope, req.Macro)
		if err != nil {
			s.writeDomainError(w, "load macro", err)
			return
		}
		cfg = &loaded
	}

	// The run outlives the request.
	ctx := context.WithoutCancel(r.Context())
	run, err := s.console.SendToController(ctx, actorFromRequest(r), address, cfg)
	if err != nil {
		s.writeDomainError(w, "send", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": run.ID,
		"status": "running",
	})
}

// pathParam returns a URL parameter with percent-encoding removed. Macro
// names may contain spaces and other reserved characters.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
