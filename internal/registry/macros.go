package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// SaveMacro creates or overwrites the macro name in scope.
//
// Returns:
//   - ErrInvalidMacro if the name is empty or too long
//   - protocol.ErrUnknownGroup if cfg names a group not in the catalog
//   - ErrNotFound if scope names an unregistered controller
//   - ErrPersistence if the snapshot could not be saved
func (r *Registry) SaveMacro(ctx context.Context, scope Scope, name string, cfg MacroConfig) error {
	name, err := validateMacroName(name)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Clone()

	err = r.mutate(ctx, "save macro", func(s *Snapshot) error {
		lib, err := macroLibrary(s, scope, true)
		if err != nil {
			return err
		}
		lib[name] = cfg
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("macro saved", "scope", scope.String(), "name", name, "groups", len(cfg.Sequence))
	return nil
}

// Macro returns a copy of the macro name in scope.
func (r *Registry) Macro(scope Scope, name string) (MacroConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lib, err := macroLibrary(r.state, scope, false)
	if err != nil {
		return MacroConfig{}, err
	}
	cfg, ok := lib[strings.TrimSpace(name)]
	if !ok {
		return MacroConfig{}, fmt.Errorf("macro %q in %s: %w", name, scope, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// HasMacro reports whether name exists in scope.
func (r *Registry) HasMacro(scope Scope, name string) bool {
	_, err := r.Macro(scope, name)
	return err == nil
}

// DeleteMacro removes the macro name from scope and reports whether it existed.
// Deleting a missing macro is not an error and does not touch storage.
func (r *Registry) DeleteMacro(ctx context.Context, scope Scope, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if !r.HasMacro(scope, name) {
		if !scope.IsGlobal() && !r.HasController(scope.Controller) {
			return false, fmt.Errorf("controller %s: %w", scope.Controller, ErrNotFound)
		}
		return false, nil
	}

	existed := false
	err := r.mutate(ctx, "delete macro", func(s *Snapshot) error {
		lib, err := macroLibrary(s, scope, false)
		if err != nil {
			return err
		}
		if _, existed = lib[name]; existed {
			delete(lib, name)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if existed {
		r.logger.Info("macro deleted", "scope", scope.String(), "name", name)
	}
	return existed, nil
}

// RenameMacro moves a macro to a new name within the same scope.
// Returns ErrNotFound if oldName is missing and ErrMacroExists if newName is taken.
func (r *Registry) RenameMacro(ctx context.Context, scope Scope, oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	newName, err := validateMacroName(newName)
	if err != nil {
		return err
	}

	return r.mutate(ctx, "rename macro", func(s *Snapshot) error {
		lib, err := macroLibrary(s, scope, false)
		if err != nil {
			return err
		}
		cfg, ok := lib[oldName]
		if !ok {
			return fmt.Errorf("macro %q in %s: %w", oldName, scope, ErrNotFound)
		}
		if oldName == newName {
			return nil
		}
		if _, taken := lib[newName]; taken {
			return fmt.Errorf("%w: %q in %s", ErrMacroExists, newName, scope)
		}
		delete(lib, oldName)
		lib[newName] = cfg
		return nil
	})
}

// MacroNames returns the macro names in scope, sorted.
func (r *Registry) MacroNames(scope Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lib, err := macroLibrary(r.state, scope, false)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(lib))
	for name := range lib {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Macros returns copies of every macro in scope keyed by name.
func (r *Registry) Macros(scope Scope) map[string]MacroConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lib, err := macroLibrary(r.state, scope, false)
	if err != nil {
		return map[string]MacroConfig{}
	}
	return cloneMacros(lib)
}

// macroLibrary returns the live macro map for scope. Controller libraries are
// created on demand when create is set; a missing library of a registered
// controller is returned as an empty, detached map otherwise.
func macroLibrary(s *Snapshot, scope Scope, create bool) (map[string]MacroConfig, error) {
	if scope.IsGlobal() {
		return s.Macros.Global, nil
	}
	if _, ok := s.Controllers[scope.Controller]; !ok {
		return nil, fmt.Errorf("controller %s: %w", scope.Controller, ErrNotFound)
	}
	lib, ok := s.Macros.PerController[scope.Controller]
	if !ok {
		lib = make(map[string]MacroConfig)
		if create {
			s.Macros.PerController[scope.Controller] = lib
		}
	}
	return lib, nil
}

func validateMacroName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidMacro)
	}
	if len(name) > MaxMacroNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidMacro, MaxMacroNameLength)
	}
	return name, nil
}
