package console

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
	"github.com/nerrad567/scanctl/internal/macro"
	"github.com/nerrad567/scanctl/internal/protocol"
	"github.com/nerrad567/scanctl/internal/registry"
)

// Logger defines the logging interface used by the Service.
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

// Source values recorded with runs and audit entries.
const (
	SourceAPI  = "api"
	SourceCLI  = "cli"
	SourceMQTT = "mqtt"
)

// Actor identifies who asked for an operation and through which surface.
type Actor struct {
	Operator string
	Source   string
}

// recordTimeout bounds history and audit writes made after a run ends,
// when no caller context is available.
const recordTimeout = 5 * time.Second

// Options configures a Service. Every field is optional.
type Options struct {
	History history.Repository
	Audit   audit.Repository

	MQTT    MQTTClient
	Hub     WSHub
	Metrics MetricsWriter

	// Interface is used for controllers registered without one.
	Interface string

	// ResolveSource returns the hardware address of an interface. It is
	// consulted for controllers registered without a source address.
	ResolveSource func(iface string) (net.HardwareAddr, error)

	Logger Logger
}

// Service is the operator console.
//
// Thread Safety: all methods are safe for concurrent use. Only one dispatch
// run is active at a time; see dispatch.Engine.
type Service struct {
	reg    *registry.Registry
	macros *macro.Store
	engine *dispatch.Engine

	history history.Repository
	audit   audit.Repository
	mqtt    MQTTClient
	hub     WSHub
	metrics MetricsWriter

	iface         string
	resolveSource func(iface string) (net.HardwareAddr, error)
	logger        Logger
}

// New creates a console over reg and engine.
func New(reg *registry.Registry, engine *dispatch.Engine, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		reg:           reg,
		macros:        macro.NewStore(reg),
		engine:        engine,
		history:       opts.History,
		audit:         opts.Audit,
		mqtt:          opts.MQTT,
		hub:           opts.Hub,
		metrics:       opts.Metrics,
		iface:         opts.Interface,
		resolveSource: opts.ResolveSource,
		logger:        logger,
	}
}

// Registry returns the registry for read access.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// Macros returns the macro library.
func (s *Service) Macros() *macro.Store {
	return s.macros
}

// Engine returns the dispatch engine.
func (s *Service) Engine() *dispatch.Engine {
	return s.engine
}

// History returns the dispatch history repository, or nil if none is configured.
func (s *Service) History() history.Repository {
	return s.history
}

// Audit returns the audit repository, or nil if none is configured.
func (s *Service) Audit() audit.Repository {
	return s.audit
}

// ─── Registry mutations ─────────────────────────────────────────────────────

// RegisterController adds a controller. See registry.Registry.RegisterController.
func (s *Service) RegisterController(ctx context.Context, actor Actor, c registry.Controller) (registry.Controller, error) {
	if err := s.reg.RegisterController(ctx, c); err != nil {
		return registry.Controller{}, err
	}
	stored, err := s.reg.Controller(c.Address)
	if err != nil {
		return registry.Controller{}, err
	}
	s.record(ctx, actor, audit.ActionRegister, audit.EntityController, stored.Address, map[string]any{
		"label":     stored.Label,
		"interface": stored.Interface,
		"source":    stored.Source,
	})
	s.registryChanged(audit.EntityController, stored.Address)
	return stored, nil
}

// UnregisterController removes a controller with its macros and unit bindings.
func (s *Service) UnregisterController(ctx context.Context, actor Actor, address string) error {
	units := s.reg.UnitsForController(address)
	if err := s.reg.UnregisterController(ctx, address); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionUnregister, audit.EntityController, addrKey(address), map[string]any{
		"cleared_units": units,
	})
	s.registryChanged(audit.EntityController, addrKey(address))
	return nil
}

// UpdateLabel renames a controller.
func (s *Service) UpdateLabel(ctx context.Context, actor Actor, address, label string) error {
	if err := s.reg.UpdateLabel(ctx, address, label); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionUpdate, audit.EntityController, addrKey(address), map[string]any{"label": label})
	s.registryChanged(audit.EntityController, addrKey(address))
	return nil
}

// SetCommandState records one command group selection for a controller.
func (s *Service) SetCommandState(ctx context.Context, actor Actor, address, group string, st registry.CommandState) error {
	if err := s.reg.SetCommandState(ctx, address, group, st); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionUpdate, audit.EntityController, addrKey(address), map[string]any{
		"group":       group,
		"enabled":     st.Enabled,
		"option":      st.Option,
		"repetitions": st.Repetitions,
		"delay_ms":    st.Delay.Milliseconds(),
	})
	s.registryChanged(audit.EntityController, addrKey(address))
	return nil
}

// AssociateUnit binds a scan unit to a controller.
func (s *Service) AssociateUnit(ctx context.Context, actor Actor, unit int, address string) error {
	if err := s.reg.AssociateUnit(ctx, unit, address); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionAssociate, audit.EntityUnit, unitID(unit), map[string]any{"controller": addrKey(address)})
	s.registryChanged(audit.EntityUnit, unitID(unit))
	return nil
}

// ClearUnit removes a scan unit's controller binding.
func (s *Service) ClearUnit(ctx context.Context, actor Actor, unit int) error {
	if err := s.reg.ClearUnit(ctx, unit); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionAssociate, audit.EntityUnit, unitID(unit), map[string]any{"controller": nil})
	s.registryChanged(audit.EntityUnit, unitID(unit))
	return nil
}

// SetUnitEnabled includes or excludes a scan unit from broadcasts.
func (s *Service) SetUnitEnabled(ctx context.Context, actor Actor, unit int, enabled bool) error {
	if err := s.reg.SetUnitEnabled(ctx, unit, enabled); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionUpdate, audit.EntityUnit, unitID(unit), map[string]any{"enabled": enabled})
	s.registryChanged(audit.EntityUnit, unitID(unit))
	return nil
}

// ─── Macros ─────────────────────────────────────────────────────────────────

// SaveMacro creates or overwrites a macro.
func (s *Service) SaveMacro(ctx context.Context, actor Actor, scope macro.Scope, name string, cfg macro.Config) error {
	if err := s.macros.Save(ctx, scope, name, cfg); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionMacroSave, audit.EntityMacro, macroID(scope, name), map[string]any{
		"sequence": cfg.Sequence,
	})
	s.registryChanged(audit.EntityMacro, macroID(scope, name))
	return nil
}

// SaveCurrentAsMacro captures a controller's current selections as a macro.
// The sequence follows catalog order.
func (s *Service) SaveCurrentAsMacro(ctx context.Context, actor Actor, address string, scope macro.Scope, name string) (macro.Config, error) {
	c, err := s.reg.Controller(address)
	if err != nil {
		return macro.Config{}, err
	}
	cfg := macro.CaptureController(c, nil)
	if err := s.SaveMacro(ctx, actor, scope, name, cfg); err != nil {
		return macro.Config{}, err
	}
	return cfg, nil
}

// ApplyMacro loads a macro into a controller's current selections without
// sending anything.
func (s *Service) ApplyMacro(ctx context.Context, actor Actor, address string, scope macro.Scope, name string) (macro.Config, error) {
	cfg, err := s.macros.Load(scope, name)
	if err != nil {
		return macro.Config{}, err
	}
	if err := s.reg.ReplaceCommands(ctx, address, cfg.State); err != nil {
		return macro.Config{}, err
	}
	s.record(ctx, actor, audit.ActionMacroApply, audit.EntityController, addrKey(address), map[string]any{
		"macro": macroID(scope, name),
	})
	s.registryChanged(audit.EntityController, addrKey(address))
	return cfg, nil
}

// DeleteMacro removes a macro and reports whether it existed.
func (s *Service) DeleteMacro(ctx context.Context, actor Actor, scope macro.Scope, name string) (bool, error) {
	existed, err := s.macros.Delete(ctx, scope, name)
	if err != nil || !existed {
		return existed, err
	}
	s.record(ctx, actor, audit.ActionMacroDrop, audit.EntityMacro, macroID(scope, name), nil)
	s.registryChanged(audit.EntityMacro, macroID(scope, name))
	return true, nil
}

// RenameMacro moves a macro to a new name within its scope.
func (s *Service) RenameMacro(ctx context.Context, actor Actor, scope macro.Scope, oldName, newName string) error {
	if err := s.macros.Rename(ctx, scope, oldName, newName); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionMacroMove, audit.EntityMacro, macroID(scope, newName), map[string]any{
		"from": oldName,
	})
	s.registryChanged(audit.EntityMacro, macroID(scope, newName))
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// record writes an audit entry. Failures are logged, never returned: the
// operation itself has already succeeded.
func (s *Service) record(ctx context.Context, actor Actor, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Operator:   actor.Operator,
		Source:     actor.source(),
		Details:    details,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}

func (a Actor) source() string {
	if a.Source == "" {
		return SourceAPI
	}
	return a.Source
}

// addrKey returns address in canonical form when it parses.
func addrKey(address string) string {
	if addr, err := protocol.NormalizeHardwareAddr(address); err == nil {
		return addr
	}
	return address
}

func unitID(unit int) string {
	return "unit-" + strconv.Itoa(unit)
}

func macroID(scope macro.Scope, name string) string {
	return scope.String() + "/" + name
}
