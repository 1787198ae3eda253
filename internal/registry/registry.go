package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/scanctl/internal/protocol"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Storage is the persistence collaborator. Save receives the full snapshot
// after every mutation; Load returns the last saved snapshot, or an empty
// one if nothing has been saved yet.
type Storage interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Registry owns the registered controllers, the scan unit association table
// and the macro library.
//
// Every mutation persists the full snapshot through Storage before it
// returns. If Save fails the in-memory state is restored to what it was
// before the call and ErrPersistence is returned.
//
// All public methods are thread-safe. Mutations are serialised, and the
// rollback happens under the same lock, so no other mutation can observe
// or interleave with a half-applied change.
type Registry struct {
	storage Storage
	logger  Logger
	now     func() time.Time

	mu    sync.RWMutex
	state *Snapshot
}

// New creates a registry with all scan units unbound.
// storage may be nil, in which case nothing is persisted.
func New(storage Storage) *Registry {
	return &Registry{
		storage: storage,
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
		state:   NewSnapshot(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load replaces the in-memory state with the snapshot from storage.
// This should be called once on application startup.
func (r *Registry) Load(ctx context.Context) error {
	if r.storage == nil {
		return nil
	}

	snap, err := r.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading snapshot: %w", ErrPersistence, err)
	}
	if snap == nil {
		snap = NewSnapshot()
	}
	snap = snap.Clone()
	if repairs := snap.normalize(); repairs > 0 {
		r.logger.Warn("registry snapshot repaired on load", "repairs", repairs)
	}

	r.mu.Lock()
	r.state = snap
	r.mu.Unlock()

	r.logger.Info("registry loaded",
		"controllers", len(snap.Controllers),
		"global_macros", len(snap.Macros.Global),
	)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// mutate applies fn to the live state and persists the result. On any
// error the state is restored from a copy taken before fn ran.
func (r *Registry) mutate(ctx context.Context, op string, fn func(s *Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state.Clone()
	if err := fn(r.state); err != nil {
		r.state = prev
		return err
	}

	if r.storage == nil {
		return nil
	}
	if err := r.storage.Save(ctx, r.state.Clone()); err != nil {
		r.state = prev
		r.logger.Error("registry save failed, mutation rolled back", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
	return nil
}

// ─── Controllers ────────────────────────────────────────────────────────────

// RegisterController adds a controller.
//
// The destination address is normalised to lowercase colon form and used as
// the identity. Source, if set, is normalised the same way.
//
// Returns:
//   - ErrInvalidController if an address or interface is invalid
//   - ErrDuplicateController if the address is already registered
//   - protocol.ErrUnknownGroup if Commands names a group not in the catalog
//   - ErrPersistence if the snapshot could not be saved
func (r *Registry) RegisterController(ctx context.Context, c Controller) error {
	addr, err := protocol.NormalizeHardwareAddr(c.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidController, err)
	}
	c.Address = addr

	if c.Source != "" {
		src, srcErr := protocol.NormalizeHardwareAddr(c.Source)
		if srcErr != nil {
			return fmt.Errorf("%w: source: %w", ErrInvalidController, srcErr)
		}
		c.Source = src
	}
	c.Interface = strings.TrimSpace(c.Interface)
	c.Label = strings.TrimSpace(c.Label)

	for group, st := range c.Commands {
		if err := validateCommandState(group, st); err != nil {
			return err
		}
	}

	c = c.Clone()
	now := r.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	err = r.mutate(ctx, "register controller", func(s *Snapshot) error {
		if _, exists := s.Controllers[addr]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateController, addr)
		}
		s.Controllers[addr] = c
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("controller registered", "address", addr, "label", c.Label, "interface", c.Interface)
	return nil
}

// UnregisterController removes a controller, its scoped macros, and every
// scan unit association that references it. Cleared units are also
// disabled. A second call for the same address fails with ErrNotFound.
func (r *Registry) UnregisterController(ctx context.Context, address string) error {
	addr := normalizeKey(address)

	var cleared []int
	err := r.mutate(ctx, "unregister controller", func(s *Snapshot) error {
		if _, exists := s.Controllers[addr]; !exists {
			return fmt.Errorf("controller %s: %w", addr, ErrNotFound)
		}
		delete(s.Controllers, addr)
		delete(s.Macros.PerController, addr)
		for n := 1; n <= UnitCount; n++ {
			a := s.Associations[n]
			if a.Controller == addr {
				s.Associations[n] = Association{Unit: n}
				cleared = append(cleared, n)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("controller unregistered", "address", addr, "units_cleared", cleared)
	return nil
}

// Controller returns a copy of the controller registered at address.
func (r *Registry) Controller(address string) (Controller, error) {
	addr := normalizeKey(address)

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.state.Controllers[addr]
	if !ok {
		return Controller{}, fmt.Errorf("controller %s: %w", addr, ErrNotFound)
	}
	return c.Clone(), nil
}

// HasController reports whether address is registered.
func (r *Registry) HasController(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.state.Controllers[normalizeKey(address)]
	return ok
}

// Controllers returns copies of all registered controllers sorted by address.
func (r *Registry) Controllers() []Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Controller, 0, len(r.state.Controllers))
	for _, c := range r.state.Controllers {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b Controller) int {
		return strings.Compare(a.Address, b.Address)
	})
	return out
}

// UpdateLabel changes a controller's display label.
func (r *Registry) UpdateLabel(ctx context.Context, address, label string) error {
	addr := normalizeKey(address)
	return r.mutate(ctx, "update label", func(s *Snapshot) error {
		c, ok := s.Controllers[addr]
		if !ok {
			return fmt.Errorf("controller %s: %w", addr, ErrNotFound)
		}
		c.Label = strings.TrimSpace(label)
		c.UpdatedAt = r.now()
		s.Controllers[addr] = c
		return nil
	})
}

// SetCommandState records the selection for one command group.
//
// Returns protocol.ErrUnknownGroup or protocol.ErrUnknownOption if the
// group or option is not in the catalog.
func (r *Registry) SetCommandState(ctx context.Context, address, group string, st CommandState) error {
	if err := validateCommandState(group, st); err != nil {
		return err
	}
	addr := normalizeKey(address)
	return r.mutate(ctx, "set command state", func(s *Snapshot) error {
		c, ok := s.Controllers[addr]
		if !ok {
			return fmt.Errorf("controller %s: %w", addr, ErrNotFound)
		}
		if c.Commands == nil {
			c.Commands = make(map[string]CommandState)
		}
		c.Commands[group] = st
		c.UpdatedAt = r.now()
		s.Controllers[addr] = c
		return nil
	})
}

// ReplaceCommands overwrites every command group selection of a controller,
// typically when a macro is applied.
func (r *Registry) ReplaceCommands(ctx context.Context, address string, commands map[string]CommandState) error {
	for group, st := range commands {
		if err := validateCommandState(group, st); err != nil {
			return err
		}
	}
	addr := normalizeKey(address)
	return r.mutate(ctx, "replace commands", func(s *Snapshot) error {
		c, ok := s.Controllers[addr]
		if !ok {
			return fmt.Errorf("controller %s: %w", addr, ErrNotFound)
		}
		c.Commands = make(map[string]CommandState, len(commands))
		for group, st := range commands {
			c.Commands[group] = st
		}
		c.UpdatedAt = r.now()
		s.Controllers[addr] = c
		return nil
	})
}

// ─── Scan units ─────────────────────────────────────────────────────────────

// AssociateUnit binds a scan unit to a registered controller, replacing any
// previous binding. The enabled flag is left unchanged.
func (r *Registry) AssociateUnit(ctx context.Context, unit int, address string) error {
	if err := validateUnit(unit); err != nil {
		return err
	}
	addr := normalizeKey(address)

	err := r.mutate(ctx, "associate unit", func(s *Snapshot) error {
		if _, ok := s.Controllers[addr]; !ok {
			return fmt.Errorf("controller %s: %w", addr, ErrNotFound)
		}
		a := s.Associations[unit]
		a.Unit = unit
		a.Controller = addr
		s.Associations[unit] = a
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("scan unit associated", "unit", unit, "controller", addr)
	return nil
}

// ClearUnit removes the controller binding of a scan unit. The enabled
// flag is left unchanged.
func (r *Registry) ClearUnit(ctx context.Context, unit int) error {
	if err := validateUnit(unit); err != nil {
		return err
	}
	return r.mutate(ctx, "clear unit", func(s *Snapshot) error {
		a := s.Associations[unit]
		a.Unit = unit
		a.Controller = ""
		s.Associations[unit] = a
		return nil
	})
}

// SetUnitEnabled sets a unit's enabled flag. An enabled unit without a
// controller is valid and simply inert.
func (r *Registry) SetUnitEnabled(ctx context.Context, unit int, enabled bool) error {
	if err := validateUnit(unit); err != nil {
		return err
	}
	return r.mutate(ctx, "set unit enabled", func(s *Snapshot) error {
		a := s.Associations[unit]
		a.Unit = unit
		a.Enabled = enabled
		s.Associations[unit] = a
		return nil
	})
}

// Unit returns the association of one scan unit.
func (r *Registry) Unit(unit int) (Association, error) {
	if err := validateUnit(unit); err != nil {
		return Association{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Associations[unit], nil
}

// Units returns all UnitCount associations ordered by unit number.
func (r *Registry) Units() []Association {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Association, 0, UnitCount)
	for n := 1; n <= UnitCount; n++ {
		out = append(out, r.state.Associations[n])
	}
	return out
}

// EnabledUnits returns, ordered by unit number, the units that are both
// enabled and bound to a controller.
func (r *Registry) EnabledUnits() []Association {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Association
	for n := 1; n <= UnitCount; n++ {
		a := r.state.Associations[n]
		if a.Enabled && a.Bound() {
			out = append(out, a)
		}
	}
	return out
}

// UnitsForController returns the unit numbers bound to address.
func (r *Registry) UnitsForController(address string) []int {
	addr := normalizeKey(address)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []int
	for n := 1; n <= UnitCount; n++ {
		if r.state.Associations[n].Controller == addr {
			out = append(out, n)
		}
	}
	return out
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func validateUnit(unit int) error {
	if unit < 1 || unit > UnitCount {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidUnit, unit, UnitCount)
	}
	return nil
}

func validateCommandState(group string, st CommandState) error {
	g, err := protocol.LookupGroup(group)
	if err != nil {
		return err
	}
	if st.Option != "" {
		if _, err := g.Resolve(st.Option); err != nil {
			return err
		}
	}
	if st.Repetitions < 0 || st.Delay < 0 {
		return fmt.Errorf("%w: group %q: negative repetitions or delay", ErrInvalidController, group)
	}
	return nil
}

// normalizeKey maps an address to its identity form. Invalid input is
// lowercased as-is so lookups fail with ErrNotFound rather than a parse error.
func normalizeKey(address string) string {
	if addr, err := protocol.NormalizeHardwareAddr(address); err == nil {
		return addr
	}
	return strings.ToLower(strings.TrimSpace(address))
}
