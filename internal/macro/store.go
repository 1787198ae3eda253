// Package macro is the operator-facing macro library: named command
// configurations saved globally or per controller.
//
// Macros are kept in the registry snapshot, so saving a macro persists the
// same way any other registry mutation does, and a controller's macros are
// dropped when the controller is unregistered.
package macro

import (
	"context"
	"slices"

	"github.com/nerrad567/scanctl/internal/protocol"
	"github.com/nerrad567/scanctl/internal/registry"
)

// Scope aliases so callers need not import registry for the common case.
type (
	Scope  = registry.Scope
	Config = registry.MacroConfig
)

// Global is the scope shared by every controller.
var Global = registry.Global

// ForController returns the scope owned by the controller at address.
func ForController(address string) Scope {
	return registry.ControllerScope(address)
}

// Store saves, loads and lists macros.
type Store struct {
	reg *registry.Registry
}

// NewStore creates a macro store backed by reg.
func NewStore(reg *registry.Registry) *Store {
	return &Store{reg: reg}
}

// Save creates or overwrites name in scope.
func (s *Store) Save(ctx context.Context, scope Scope, name string, cfg Config) error {
	return s.reg.SaveMacro(ctx, scope, name, cfg)
}

// Load returns the macro name in scope, or registry.ErrNotFound.
func (s *Store) Load(scope Scope, name string) (Config, error) {
	return s.reg.Macro(scope, name)
}

// Delete removes name from scope and reports whether it existed.
func (s *Store) Delete(ctx context.Context, scope Scope, name string) (bool, error) {
	return s.reg.DeleteMacro(ctx, scope, name)
}

// List returns the macro names in scope, sorted.
func (s *Store) List(scope Scope) []string {
	return s.reg.MacroNames(scope)
}

// All returns every macro in scope keyed by name.
func (s *Store) All(scope Scope) map[string]Config {
	return s.reg.Macros(scope)
}

// Exists reports whether name is saved in scope.
func (s *Store) Exists(scope Scope, name string) bool {
	return s.reg.HasMacro(scope, name)
}

// Rename moves a macro to a new name in the same scope.
// Fails with registry.ErrMacroExists if newName is already used.
func (s *Store) Rename(ctx context.Context, scope Scope, oldName, newName string) error {
	return s.reg.RenameMacro(ctx, scope, oldName, newName)
}

// Capture builds a macro configuration from a command-state map. The
// sequence is the given order, or catalog order for any groups it omits.
func Capture(commands map[string]registry.CommandState, order []string) Config {
	cfg := Config{
		State: make(map[string]registry.CommandState, len(commands)),
	}
	seen := make(map[string]bool, len(commands))
	for _, name := range order {
		if _, ok := commands[name]; ok && !seen[name] {
			cfg.Sequence = append(cfg.Sequence, name)
			seen[name] = true
		}
	}
	for _, g := range protocol.Groups() {
		if _, ok := commands[g.Name]; ok && !seen[g.Name] {
			cfg.Sequence = append(cfg.Sequence, g.Name)
			seen[g.Name] = true
		}
	}
	for name, st := range commands {
		cfg.State[name] = st
	}
	return cfg
}

// CaptureController snapshots a controller's current command state.
func CaptureController(c registry.Controller, order []string) Config {
	return Capture(c.Commands, order)
}

// Enabled returns the sequence entries whose state is enabled, in order.
func Enabled(cfg Config) []string {
	return slices.DeleteFunc(slices.Clone(cfg.Sequence), func(name string) bool {
		return !cfg.State[name].Enabled
	})
}
