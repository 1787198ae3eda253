package registry

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/scanctl/internal/protocol"
)

// UnitCount is the number of scan unit slots. Units are numbered 1..UnitCount.
const UnitCount = 10

// MaxMacroNameLength bounds macro names.
const MaxMacroNameLength = 100

// CommandState is the operator's selection for one command group.
type CommandState struct {
	Enabled bool `json:"enabled"`

	// Option is the selected option label (ON, OFF, HIGH, ...). Empty selects
	// the group's first option.
	Option string `json:"option,omitempty"`

	Repetitions int           `json:"repetitions"`
	Delay       time.Duration `json:"delay"`
}

// Controller is a registered hardware endpoint.
// Address (the destination MAC) is its identity.
type Controller struct {
	Address   string `json:"address"`
	Source    string `json:"source"`
	Interface string `json:"interface"`
	Label     string `json:"label"`

	// Commands holds the last known state per command group name.
	Commands map[string]CommandState `json:"commands,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns an independent copy of the controller.
func (c Controller) Clone() Controller {
	c.Commands = maps.Clone(c.Commands)
	return c
}

// Association binds a scan unit to at most one controller.
type Association struct {
	Unit       int    `json:"unit"`
	Controller string `json:"controller,omitempty"` // Empty when the unit is unbound
	Enabled    bool   `json:"enabled"`
}

// Bound reports whether the unit references a controller.
func (a Association) Bound() bool {
	return a.Controller != ""
}

// MacroConfig is a named command-configuration snapshot.
type MacroConfig struct {
	// Sequence is the ordered list of command group names.
	Sequence []string `json:"sequence"`

	// State is the per-group selection at the time of saving.
	State map[string]CommandState `json:"state"`
}

// Clone returns an independent copy of the configuration.
func (m MacroConfig) Clone() MacroConfig {
	return MacroConfig{
		Sequence: slices.Clone(m.Sequence),
		State:    maps.Clone(m.State),
	}
}

// Equal reports whether two configurations hold the same sequence and state.
func (m MacroConfig) Equal(other MacroConfig) bool {
	return slices.Equal(m.Sequence, other.Sequence) && maps.Equal(m.State, other.State)
}

// Validate checks that every group the configuration names is in the catalog.
func (m MacroConfig) Validate() error {
	for _, name := range m.Sequence {
		if !protocol.IsGroup(name) {
			return fmt.Errorf("sequence: %w: %q", protocol.ErrUnknownGroup, name)
		}
	}
	for name := range m.State {
		if !protocol.IsGroup(name) {
			return fmt.Errorf("state: %w: %q", protocol.ErrUnknownGroup, name)
		}
	}
	return nil
}

// Scope selects the global macro library or one controller's library.
type Scope struct {
	Controller string `json:"controller,omitempty"`
}

// Global is the scope shared by all controllers.
var Global = Scope{}

// ControllerScope returns the macro scope owned by the controller at address.
func ControllerScope(address string) Scope {
	return Scope{Controller: normalizeKey(address)}
}

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool {
	return s.Controller == ""
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "controller:" + s.Controller
}

// MacroLibrary is the persisted macro section of a snapshot.
type MacroLibrary struct {
	Global        map[string]MacroConfig            `json:"global"`
	PerController map[string]map[string]MacroConfig `json:"per_controller"`
}

// Snapshot is the full registry state as persisted by the storage collaborator.
type Snapshot struct {
	Controllers  map[string]Controller `json:"controllers"`
	Associations map[int]Association   `json:"associations"`
	Macros       MacroLibrary          `json:"macros"`
}

// NewSnapshot returns an empty snapshot with all scan units unbound.
func NewSnapshot() *Snapshot {
	s := &Snapshot{
		Controllers:  make(map[string]Controller),
		Associations: make(map[int]Association, UnitCount),
		Macros: MacroLibrary{
			Global:        make(map[string]MacroConfig),
			PerController: make(map[string]map[string]MacroConfig),
		},
	}
	for n := 1; n <= UnitCount; n++ {
		s.Associations[n] = Association{Unit: n}
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cpy := &Snapshot{
		Controllers:  make(map[string]Controller, len(s.Controllers)),
		Associations: maps.Clone(s.Associations),
		Macros: MacroLibrary{
			Global:        cloneMacros(s.Macros.Global),
			PerController: make(map[string]map[string]MacroConfig, len(s.Macros.PerController)),
		},
	}
	for addr, c := range s.Controllers {
		cpy.Controllers[addr] = c.Clone()
	}
	for addr, lib := range s.Macros.PerController {
		cpy.Macros.PerController[addr] = cloneMacros(lib)
	}
	if cpy.Associations == nil {
		cpy.Associations = make(map[int]Association, UnitCount)
	}
	return cpy
}

func cloneMacros(in map[string]MacroConfig) map[string]MacroConfig {
	out := make(map[string]MacroConfig, len(in))
	for name, m := range in {
		out[name] = m.Clone()
	}
	return out
}

// normalize fills missing maps and unit slots and drops references to
// controllers that no longer exist. It returns the number of repairs made.
func (s *Snapshot) normalize() int {
	repairs := 0
	if s.Controllers == nil {
		s.Controllers = make(map[string]Controller)
	}
	if s.Associations == nil {
		s.Associations = make(map[int]Association, UnitCount)
	}
	if s.Macros.Global == nil {
		s.Macros.Global = make(map[string]MacroConfig)
	}
	if s.Macros.PerController == nil {
		s.Macros.PerController = make(map[string]map[string]MacroConfig)
	}

	for n := range s.Associations {
		if n < 1 || n > UnitCount {
			delete(s.Associations, n)
			repairs++
		}
	}
	for n := 1; n <= UnitCount; n++ {
		a, ok := s.Associations[n]
		if !ok {
			s.Associations[n] = Association{Unit: n}
			continue
		}
		a.Unit = n
		if a.Bound() {
			if _, exists := s.Controllers[a.Controller]; !exists {
				a.Controller = ""
				a.Enabled = false
				repairs++
			}
		}
		s.Associations[n] = a
	}
	for addr := range s.Macros.PerController {
		if _, exists := s.Controllers[addr]; !exists {
			delete(s.Macros.PerController, addr)
			repairs++
		}
	}
	return repairs
}
