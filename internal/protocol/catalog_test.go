package protocol

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    byte
		wantErr error
	}{
		{name: "cpu", command: "X_00_CPU", want: 0x00},
		{name: "reset", command: "X_FF_Reset", want: 0xFF},
		{name: "fan high", command: "X_E3_FanSpeed1_High", want: 0xE3},
		{name: "power rail", command: "X_2A_PwrEN_1V8A_ON", want: 0x2A},
		{name: "unknown", command: "X_99_Nope", wantErr: ErrUnknownCommand},
		{name: "case sensitive", command: "x_ff_reset", wantErr: ErrUnknownCommand},
		{name: "empty", command: "", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(tt.command)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup(%q) error = %v, want %v", tt.command, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) error = %v", tt.command, err)
			}
			if got.Code != tt.want {
				t.Errorf("Lookup(%q).Code = 0x%02X, want 0x%02X", tt.command, got.Code, tt.want)
			}
			if got.Name != tt.command {
				t.Errorf("Lookup(%q).Name = %q", tt.command, got.Name)
			}
		})
	}
}

func TestCatalogSize(t *testing.T) {
	if n := len(Commands()); n != 28 {
		t.Errorf("len(Commands()) = %d, want 28", n)
	}
	if n := len(Groups()); n != 14 {
		t.Errorf("len(Groups()) = %d, want 14", n)
	}
}

func TestCommandCodesUnique(t *testing.T) {
	seen := make(map[byte]string)
	for _, c := range Commands() {
		if prev, ok := seen[c.Code]; ok {
			t.Errorf("code 0x%02X used by %q and %q", c.Code, prev, c.Name)
		}
		seen[c.Code] = c.Name
	}
}

func TestLookupCode(t *testing.T) {
	for _, c := range Commands() {
		got, err := LookupCode(c.Code)
		if err != nil {
			t.Fatalf("LookupCode(0x%02X) error = %v", c.Code, err)
		}
		if got.Name != c.Name {
			t.Errorf("LookupCode(0x%02X) = %q, want %q", c.Code, got.Name, c.Name)
		}
	}

	if _, err := LookupCode(0x77); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("LookupCode(0x77) error = %v, want ErrUnknownCommand", err)
	}
}

func TestGroupsResolveToCatalogCommands(t *testing.T) {
	for _, g := range Groups() {
		if len(g.Options) == 0 {
			t.Errorf("group %q has no options", g.Name)
			continue
		}
		for _, o := range g.Options {
			if _, err := g.Resolve(o.Label); err != nil {
				t.Errorf("group %q option %q: %v", g.Name, o.Label, err)
			}
		}
		if g.DefaultRepetitions != DefaultRepetitions {
			t.Errorf("group %q DefaultRepetitions = %d", g.Name, g.DefaultRepetitions)
		}
		if g.DefaultDelay != DefaultDelay {
			t.Errorf("group %q DefaultDelay = %v", g.Name, g.DefaultDelay)
		}
	}
}

func TestLookupGroup(t *testing.T) {
	g, err := LookupGroup("X_E1_FanSpeed0_High | X_E0_FanSpeed0_Low")
	if err != nil {
		t.Fatalf("LookupGroup() error = %v", err)
	}
	if g.Kind != KindChoice {
		t.Errorf("Kind = %q, want %q", g.Kind, KindChoice)
	}

	labels := g.OptionLabels()
	if len(labels) != 2 || labels[0] != OptionHigh || labels[1] != OptionLow {
		t.Errorf("OptionLabels() = %v, want [HIGH LOW]", labels)
	}

	cmd, err := g.Resolve(OptionLow)
	if err != nil {
		t.Fatalf("Resolve(LOW) error = %v", err)
	}
	if cmd.Code != 0xE0 {
		t.Errorf("Resolve(LOW).Code = 0x%02X, want 0xE0", cmd.Code)
	}

	if _, err := g.Resolve(OptionOn); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("Resolve(ON) error = %v, want ErrUnknownOption", err)
	}
}

func TestLookupGroup_Unknown(t *testing.T) {
	_, err := LookupGroup("X_00_CPU")
	if !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("error = %v, want ErrUnknownGroup", err)
	}
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, should also match ErrUnknownCommand", err)
	}
}

func TestLookupGroup_ReturnsCopy(t *testing.T) {
	g, err := LookupGroup("X_04_RO_ON | X_05_RO_OFF")
	if err != nil {
		t.Fatalf("LookupGroup() error = %v", err)
	}
	g.Options[0].Command = "tampered"

	again, _ := LookupGroup("X_04_RO_ON | X_05_RO_OFF")
	if again.Options[0].Command != "X_04_RO_ON" {
		t.Errorf("catalog mutated through returned group: %q", again.Options[0].Command)
	}
}

func TestRepeatableGroups(t *testing.T) {
	want := map[string]bool{
		"X_FF_Reset":       true,
		"X_02_TestTrigger": true,
		"X_03_RO_Single":   true,
	}
	for _, g := range Groups() {
		if g.Repeatable != want[g.Name] {
			t.Errorf("group %q Repeatable = %v, want %v", g.Name, g.Repeatable, want[g.Name])
		}
	}
}
