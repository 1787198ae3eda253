package protocol

import (
	"fmt"
	"time"
)

// Command is a single named protocol command and its wire byte.
type Command struct {
	Name string `json:"name"`
	Code byte   `json:"code"`
}

// GroupKind describes how an operator configures a command group.
type GroupKind string

const (
	// KindToggle groups have a single option that is either sent or not.
	KindToggle GroupKind = "toggle"

	// KindChoice groups select exactly one of several options, each mapped
	// to its own command byte (ON/OFF, HIGH/LOW, GLOBAL/LOCAL).
	KindChoice GroupKind = "choice"
)

// Option labels used by the catalog.
const (
	OptionOn     = "ON"
	OptionOff    = "OFF"
	OptionHigh   = "HIGH"
	OptionLow    = "LOW"
	OptionGlobal = "GLOBAL"
	OptionLocal  = "LOCAL"
)

// Defaults applied to every group unless the operator overrides them.
const (
	DefaultRepetitions = 1
	DefaultDelay       = time.Second
)

// Option maps an option label to the command it sends.
type Option struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Group describes one configurable command slot. Groups are catalog data;
// per-controller selections live in the registry.
type Group struct {
	Name    string    `json:"name"`
	Kind    GroupKind `json:"kind"`
	Options []Option  `json:"options"`

	// Repeatable groups let the operator choose the repetition count.
	// All other groups always send a single frame per dispatch.
	Repeatable bool `json:"repeatable"`

	DefaultRepetitions int           `json:"default_repetitions"`
	DefaultDelay       time.Duration `json:"default_delay"`
}

// OptionLabels returns the option labels of the group in catalog order.
func (g Group) OptionLabels() []string {
	labels := make([]string, len(g.Options))
	for i, o := range g.Options {
		labels[i] = o.Label
	}
	return labels
}

// Resolve returns the command selected by option.
// Returns ErrUnknownOption if the group has no such option.
func (g Group) Resolve(option string) (Command, error) {
	for _, o := range g.Options {
		if o.Label == option {
			return Lookup(o.Command)
		}
	}
	return Command{}, fmt.Errorf("%w: %q in group %q", ErrUnknownOption, option, g.Name)
}

// commands is the controller firmware command table. Order is the order
// used by Commands().
var commands = []Command{
	{"X_00_CPU", 0x00},
	{"X_02_TestTrigger", 0x02},
	{"X_03_RO_Single", 0x03},
	{"X_04_RO_ON", 0x04},
	{"X_05_RO_OFF", 0x05},
	{"X_08_DIAG_", 0x08},
	{"X_09_DIAG_DIS", 0x09},
	{"X_F9_TTrig_Global", 0xF9},
	{"X_FA_TTrig_Local", 0xFA},
	{"X_FB_TTrig_Auto_EN", 0xFB},
	{"X_FC_TTrig_Auto_DIS", 0xFC},
	{"X_FF_Reset", 0xFF},
	{"X_20_PwrDwnb_TOP_ON", 0x20},
	{"X_21_PwrDwnb_TOP_OFF", 0x21},
	{"X_22_PwrDwnb_BOT_ON", 0x22},
	{"X_23_PwrDwnb_BOT_OFF", 0x23},
	{"X_24_PwrEN_2V4A_ON", 0x24},
	{"X_25_PwrEN_2V4A_OFF", 0x25},
	{"X_26_PwrEN_2V4D_ON", 0x26},
	{"X_27_PwrEN_2V4D_OFF", 0x27},
	{"X_28_PwrEN_3V1_ON", 0x28},
	{"X_29_PwrEN_3V1_OFF", 0x29},
	{"X_2A_PwrEN_1V8A_ON", 0x2A},
	{"X_2B_PwrEN_1V8A_OFF", 0x2B},
	{"X_E0_FanSpeed0_Low", 0xE0},
	{"X_E1_FanSpeed0_High", 0xE1},
	{"X_E2_FanSpeed1_Low", 0xE2},
	{"X_E3_FanSpeed1_High", 0xE3},
}

// groups is the operator-facing configuration table.
var groups = []Group{
	toggle("X_02_TestTrigger", true),
	toggle("X_03_RO_Single", true),
	choice("X_04_RO_ON | X_05_RO_OFF", OptionOn, "X_04_RO_ON", OptionOff, "X_05_RO_OFF"),
	choice("X_08_DIAG_ | X_09_DIAG_DIS", OptionOn, "X_08_DIAG_", OptionOff, "X_09_DIAG_DIS"),
	choice("X_FB_TTrig_Auto_EN | X_FC_TTrig_Auto_DIS", OptionOn, "X_FB_TTrig_Auto_EN", OptionOff, "X_FC_TTrig_Auto_DIS"),
	toggle("X_FF_Reset", true),
	choice("X_20_PwrDwnb_TOP_ON | X_21_PwrDwnb_TOP_OFF", OptionOn, "X_20_PwrDwnb_TOP_ON", OptionOff, "X_21_PwrDwnb_TOP_OFF"),
	choice("X_22_PwrDwnb_BOT_ON | X_23_PwrDwnb_BOT_OFF", OptionOn, "X_22_PwrDwnb_BOT_ON", OptionOff, "X_23_PwrDwnb_BOT_OFF"),
	choice("X_26_PwrEN_2V4D_ON | X_27_PwrEN_2V4D_OFF", OptionOn, "X_26_PwrEN_2V4D_ON", OptionOff, "X_27_PwrEN_2V4D_OFF"),
	choice("X_28_PwrEN_3V1_ON | X_29_PwrEN_3V1_OFF", OptionOn, "X_28_PwrEN_3V1_ON", OptionOff, "X_29_PwrEN_3V1_OFF"),
	choice("X_2A_PwrEN_1V8A_ON | X_2B_PwrEN_1V8A_OFF", OptionOn, "X_2A_PwrEN_1V8A_ON", OptionOff, "X_2B_PwrEN_1V8A_OFF"),
	choice("X_E1_FanSpeed0_High | X_E0_FanSpeed0_Low", OptionHigh, "X_E1_FanSpeed0_High", OptionLow, "X_E0_FanSpeed0_Low"),
	choice("X_F9_TTrig_Global | X_FA_TTrig_Local", OptionGlobal, "X_F9_TTrig_Global", OptionLocal, "X_FA_TTrig_Local"),
	choice("X_E3_FanSpeed1_High | X_E2_FanSpeed1_Low", OptionHigh, "X_E3_FanSpeed1_High", OptionLow, "X_E2_FanSpeed1_Low"),
}

var (
	commandsByName = make(map[string]Command, len(commands))
	commandsByCode = make(map[byte]Command, len(commands))
	groupsByName   = make(map[string]Group, len(groups))
)

func init() {
	for _, c := range commands {
		commandsByName[c.Name] = c
		commandsByCode[c.Code] = c
	}
	for _, g := range groups {
		groupsByName[g.Name] = g
	}
}

func toggle(command string, repeatable bool) Group {
	return Group{
		Name:               command,
		Kind:               KindToggle,
		Options:            []Option{{Label: OptionOn, Command: command}},
		Repeatable:         repeatable,
		DefaultRepetitions: DefaultRepetitions,
		DefaultDelay:       DefaultDelay,
	}
}

func choice(name, labelA, commandA, labelB, commandB string) Group {
	return Group{
		Name: name,
		Kind: KindChoice,
		Options: []Option{
			{Label: labelA, Command: commandA},
			{Label: labelB, Command: commandB},
		},
		DefaultRepetitions: DefaultRepetitions,
		DefaultDelay:       DefaultDelay,
	}
}

// Lookup returns the command with the given name.
// Returns ErrUnknownCommand if the name is not in the catalog.
func Lookup(name string) (Command, error) {
	c, ok := commandsByName[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// LookupCode returns the command that encodes to b.
func LookupCode(b byte) (Command, error) {
	c, ok := commandsByCode[b]
	if !ok {
		return Command{}, fmt.Errorf("%w: code 0x%02X", ErrUnknownCommand, b)
	}
	return c, nil
}

// LookupGroup returns the command group with the given name.
// Returns ErrUnknownGroup (which matches ErrUnknownCommand) if it does not exist.
func LookupGroup(name string) (Group, error) {
	g, ok := groupsByName[name]
	if !ok {
		return Group{}, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	// Options is shared catalog data; hand out a private copy.
	g.Options = append([]Option(nil), g.Options...)
	return g, nil
}

// Commands returns every command in catalog order.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

// Groups returns every command group in catalog order.
func Groups() []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		g.Options = append([]Option(nil), g.Options...)
		out[i] = g
	}
	return out
}

// IsCommand reports whether name is a catalog command.
func IsCommand(name string) bool {
	_, ok := commandsByName[name]
	return ok
}

// IsGroup reports whether name is a catalog command group.
func IsGroup(name string) bool {
	_, ok := groupsByName[name]
	return ok
}
