package api

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/scanctl/internal/protocol"
)

// commandView is a catalog command with its wire byte in hex.
type commandView struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// groupView is a catalog group with its default delay in milliseconds.
type groupView struct {
	Name               string             `json:"name"`
	Kind               protocol.GroupKind `json:"kind"`
	Options            []protocol.Option  `json:"options"`
	Repeatable         bool               `json:"repeatable"`
	DefaultRepetitions int                `json:"default_repetitions"`
	DefaultDelayMS     int64              `json:"default_delay_ms"`
}

// handleListCommands returns the command catalog in catalog order.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	commands := protocol.Commands()
	views := make([]commandView, len(commands))
	for i, c := range commands {
		views[i] = commandView{Name: c.Name, Code: fmt.Sprintf("0x%02X", c.Code)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": views,
		"count":    len(views),
	})
}

// handleListGroups returns the operator-facing command groups in catalog order.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	groups := protocol.Groups()
	views := make([]groupView, len(groups))
	for i, g := range groups {
		views[i] = groupView{
			Name:               g.Name,
			Kind:               g.Kind,
			Options:            g.Options,
			Repeatable:         g.Repeatable,
			DefaultRepetitions: g.DefaultRepetitions,
			DefaultDelayMS:     g.DefaultDelay.Milliseconds(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": views,
		"count":  len(views),
	})
}

// handleListAdapters returns the wired Ethernet adapters on this host.
func (s *Server) handleListAdapters(w http.ResponseWriter, _ *http.Request) {
	adapters, err := s.adapters()
	if err != nil {
		s.logger.Error("listing adapters failed", "error", err)
		writeInternalError(w, "failed to list network adapters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"adapters": adapters,
		"count":    len(adapters),
	})
}
