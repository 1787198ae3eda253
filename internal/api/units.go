package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type associateUnitRequest struct {
	Controller string `json:"controller"`
}

type setUnitEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleListUnits returns all scan unit slots in unit order.
func (s *Server) handleListUnits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"units": s.console.Registry().Units(),
	})
}

// handleAssociateUnit binds a scan unit to a controller.
func (s *Server) handleAssociateUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := unitParam(w, r)
	if !ok {
		return
	}

	var req associateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Controller == "" {
		writeBadRequest(w, "controller is required")
		return
	}

	if err := s.console.AssociateUnit(r.Context(), actorFromRequest(r), unit, req.Controller); err != nil {
		s.writeDomainError(w, "associate unit", err)
		return
	}
	s.writeUnit(w, unit)
}

// handleClearUnit removes a scan unit's controller binding.
func (s *Server) handleClearUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := unitParam(w, r)
	if !ok {
		return
	}
	if err := s.console.ClearUnit(r.Context(), actorFromRequest(r), unit); err != nil {
		s.writeDomainError(w, "clear unit", err)
		return
	}
	s.writeUnit(w, unit)
}

// handleSetUnitEnabled includes or excludes a scan unit from broadcasts.
func (s *Server) handleSetUnitEnabled(w http.ResponseWriter, r *http.Request) {
	unit, ok := unitParam(w, r)
	if !ok {
		return
	}

	var req setUnitEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	if err := s.console.SetUnitEnabled(r.Context(), actorFromRequest(r), unit, *req.Enabled); err != nil {
		s.writeDomainError(w, "set unit enabled", err)
		return
	}
	s.writeUnit(w, unit)
}

func (s *Server) writeUnit(w http.ResponseWriter, unit int) {
	a, err := s.console.Registry().Unit(unit)
	if err != nil {
		s.writeDomainError(w, "get unit", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// unitParam parses the {unit} path parameter, writing a 400 on failure.
// Range checking is left to the registry.
func unitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	unit, err := strconv.Atoi(pathParam(r, "unit"))
	if err != nil {
		writeBadRequest(w, "unit must be a number")
		return 0, false
	}
	return unit, true
}
