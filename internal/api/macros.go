package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/nerrad567/scanctl/internal/macro"
)

// macroView is a macro as returned by the API.
type macroView struct {
	Name     string                      `json:"name"`
	Scope    string                      `json:"scope"`
	Sequence []string                    `json:"sequence"`
	State    map[string]commandStateBody `json:"state"`
}

func newMacroView(scope macro.Scope, name string, cfg macro.Config) macroView {
	seq := cfg.Sequence
	if seq == nil {
		seq = []string{}
	}
	return macroView{
		Name:     name,
		Scope:    scope.String(),
		Sequence: seq,
		State:    commandStateBodies(cfg.State),
	}
}

type saveMacroRequest struct {
	Name     string                      `json:"name"`
	Sequence []string                    `json:"sequence"`
	State    map[string]commandStateBody `json:"state"`
}

type captureMacroRequest struct {
	Name string `json:"name"`

	// Global stores the capture in the global library instead of the
	// controller's own.
	Global bool `json:"global"`
}

type renameMacroRequest struct {
	Name string `json:"name"`
}

// ─── Global library ────────────────────────────────────────────────

func (s *Server) handleListGlobalMacros(w http.ResponseWriter, _ *http.Request) {
	s.writeMacroList(w, macro.Global)
}

func (s *Server) handleGetGlobalMacro(w http.ResponseWriter, r *http.Request) {
	s.writeMacro(w, macro.Global, pathParam(r, "name"))
}

func (s *Server) handleSaveGlobalMacro(w http.ResponseWriter, r *http.Request) {
	s.saveMacro(w, r, macro.Global)
}

func (s *Server) handleRenameGlobalMacro(w http.ResponseWriter, r *http.Request) {
	s.renameMacro(w, r, macro.Global)
}

func (s *Server) handleDeleteGlobalMacro(w http.ResponseWriter, r *http.Request) {
	s.deleteMacro(w, r, macro.Global)
}

// ─── Controller library ────────────────────────────────────────────

func (s *Server) handleListControllerMacros(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if !s.console.Registry().HasController(address) {
		writeNotFound(w, "controller not found")
		return
	}
	s.writeMacroList(w, macro.ForController(address))
}

func (s *Server) handleGetControllerMacro(w http.ResponseWriter, r *http.Request) {
	s.writeMacro(w, macro.ForController(pathParam(r, "address")), pathParam(r, "name"))
}

func (s *Server) handleSaveControllerMacro(w http.ResponseWriter, r *http.Request) {
	s.saveMacro(w, r, macro.ForController(pathParam(r, "address")))
}

func (s *Server) handleRenameControllerMacro(w http.ResponseWriter, r *http.Request) {
	s.renameMacro(w, r, macro.ForController(pathParam(r, "address")))
}

func (s *Server) handleDeleteControllerMacro(w http.ResponseWriter, r *http.Request) {
	s.deleteMacro(w, r, macro.ForController(pathParam(r, "address")))
}

// handleCaptureMacro saves a controller's current selections as a macro.
func (s *Server) handleCaptureMacro(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	var req captureMacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	scope := macro.ForController(address)
	if req.Global {
		scope = macro.Global
	}

	cfg, err := s.console.SaveCurrentAsMacro(r.Context(), actorFromRequest(r), address, scope, req.Name)
	if err != nil {
		s.writeDomainError(w, "capture macro", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMacroView(scope, req.Name, cfg))
}

// handleApplyMacro loads a macro into the controller's current selections.
// The query parameter scope=global selects the global library.
func (s *Server) handleApplyMacro(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	name := pathParam(r, "name")

	scope := macro.ForController(address)
	if r.URL.Query().Get("scope") == "global" {
		scope = macro.Global
	}

	if _, err := s.console.ApplyMacro(r.Context(), actorFromRequest(r), address, scope, name); err != nil {
		s.writeDomainError(w, "apply macro", err)
		return
	}
	s.handleGetController(w, r)
}

// ─── Shared ────────────────────────────────────────────────────────

func (s *Server) writeMacroList(w http.ResponseWriter, scope macro.Scope) {
	all := s.console.Macros().All(scope)
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]macroView, 0, len(names))
	for _, name := range names {
		views = append(views, newMacroView(scope, name, all[name]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":  scope.String(),
		"macros": views,
		"count":  len(views),
	})
}

func (s *Server) writeMacro(w http.ResponseWriter, scope macro.Scope, name string) {
	cfg, err := s.console.Macros().Load(scope, name)
	if err != nil {
		s.writeDomainError(w, "get macro", err)
		return
	}
	writeJSON(w, http.StatusOK, newMacroView(scope, name, cfg))
}

func (s *Server) saveMacro(w http.ResponseWriter, r *http.Request, scope macro.Scope) {
	var req saveMacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	cfg := macro.Config{Sequence: req.Sequence, State: commandStates(req.State)}
	if err := s.console.SaveMacro(r.Context(), actorFromRequest(r), scope, req.Name, cfg); err != nil {
		s.writeDomainError(w, "save macro", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMacroView(scope, req.Name, cfg))
}

func (s *Server) renameMacro(w http.ResponseWriter, r *http.Request, scope macro.Scope) {
	oldName := pathParam(r, "name")

	var req renameMacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	if err := s.console.RenameMacro(r.Context(), actorFromRequest(r), scope, oldName, req.Name); err != nil {
		s.writeDomainError(w, "rename macro", err)
		return
	}
	s.writeMacro(w, scope, req.Name)
}

func (s *Server) deleteMacro(w http.ResponseWriter, r *http.Request, scope macro.Scope) {
	name := pathParam(r, "name")
	existed, err := s.console.DeleteMacro(r.Context(), actorFromRequest(r), scope, name)
	if err != nil {
		s.writeDomainError(w, "delete macro", err)
		return
	}
	if !existed {
		writeNotFound(w, "macro not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
