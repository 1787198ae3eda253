package macro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/scanctl/internal/protocol"
	"github.com/nerrad567/scanctl/internal/registry"
)

func setupStore(t *testing.T) (*Store, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	return NewStore(reg), reg
}

func TestStore_GlobalLifecycle(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cfg := Config{
		Sequence: []string{"X_FF_Reset"},
		State:    map[string]registry.CommandState{"X_FF_Reset": {Enabled: true, Repetitions: 3, Delay: time.Second}},
	}
	if err := store.Save(ctx, Global, "warmup", cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists(Global, "warmup") {
		t.Error("Exists() = false after Save")
	}

	got, err := store.Load(Global, "warmup")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Equal(cfg) {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}

	if names := store.List(Global); len(names) != 1 || names[0] != "warmup" {
		t.Errorf("List() = %v, want [warmup]", names)
	}
	if all := store.All(Global); len(all) != 1 {
		t.Errorf("All() = %v, want one entry", all)
	}

	if err := store.Rename(ctx, Global, "warmup", "cooldown"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	existed, err := store.Delete(ctx, Global, "cooldown")
	if err != nil || !existed {
		t.Fatalf("Delete() = %v, %v", existed, err)
	}
	if _, err := store.Load(Global, "cooldown"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_ControllerScope(t *testing.T) {
	store, reg := setupStore(t)
	ctx := context.Background()

	addr := "AA:BB:CC:DD:EE:01"
	if err := reg.RegisterController(ctx, registry.Controller{Address: addr, Interface: "eth1"}); err != nil {
		t.Fatalf("RegisterController() error = %v", err)
	}

	scope := ForController(addr)
	if scope.IsGlobal() {
		t.Fatal("ForController() returned the global scope")
	}
	if err := store.Save(ctx, scope, "local", Config{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.Exists(Global, "local") {
		t.Error("scoped macro leaked into global scope")
	}

	_ = reg.UnregisterController(ctx, addr)
	if names := store.List(scope); len(names) != 0 {
		t.Errorf("List() after unregister = %v, want none", names)
	}
}

func TestCapture(t *testing.T) {
	commands := map[string]registry.CommandState{
		"X_02_TestTrigger":           {Enabled: true, Repetitions: 4},
		"X_FF_Reset":                 {Enabled: true, Repetitions: 1},
		"X_08_DIAG_ | X_09_DIAG_DIS": {Enabled: false, Option: protocol.OptionOff},
	}

	cfg := Capture(commands, []string{"X_FF_Reset", "not-configured"})

	want := []string{"X_FF_Reset", "X_02_TestTrigger", "X_08_DIAG_ | X_09_DIAG_DIS"}
	if len(cfg.Sequence) != len(want) {
		t.Fatalf("Sequence = %v, want %v", cfg.Sequence, want)
	}
	for i := range want {
		if cfg.Sequence[i] != want[i] {
			t.Errorf("Sequence[%d] = %q, want %q", i, cfg.Sequence[i], want[i])
		}
	}
	if cfg.State["X_02_TestTrigger"].Repetitions != 4 {
		t.Errorf("State not captured: %+v", cfg.State)
	}

	enabled := Enabled(cfg)
	if len(enabled) != 2 || enabled[0] != "X_FF_Reset" || enabled[1] != "X_02_TestTrigger" {
		t.Errorf("Enabled() = %v", enabled)
	}
}
