package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/scanctl/internal/registry"
)

func sampleSnapshot() *registry.Snapshot {
	snap := registry.NewSnapshot()
	snap.Controllers["aa:bb:cc:dd:ee:01"] = registry.Controller{
		Address:   "aa:bb:cc:dd:ee:01",
		Source:    "02:00:00:00:00:01",
		Interface: "eth0",
		Label:     "rack A",
		Commands: map[string]registry.CommandState{
			"X_FF_Reset": {Enabled: true, Option: "ON", Repetitions: 3, Delay: 250 * time.Millisecond},
		},
	}
	snap.Associations[3] = registry.Association{Unit: 3, Controller: "aa:bb:cc:dd:ee:01", Enabled: true}
	snap.Macros.Global["warmup"] = registry.MacroConfig{
		Sequence: []string{"X_FF_Reset"},
		State:    map[string]registry.CommandState{"X_FF_Reset": {Enabled: true, Repetitions: 2}},
	}
	return snap
}

func TestJSONFileLoadMissing(t *testing.T) {
	s := NewJSONFile(filepath.Join(t.TempDir(), "registry.json"))

	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Controllers) != 0 {
		t.Errorf("Controllers = %d, want 0", len(snap.Controllers))
	}
	if len(snap.Associations) != registry.UnitCount {
		t.Errorf("Associations = %d, want %d", len(snap.Associations), registry.UnitCount)
	}
}

func TestJSONFileSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	s := NewJSONFile(path)
	ctx := context.Background()

	if err := s.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c, ok := got.Controllers["aa:bb:cc:dd:ee:01"]
	if !ok {
		t.Fatal("controller missing after reload")
	}
	if c.Label != "rack A" {
		t.Errorf("Label = %q, want %q", c.Label, "rack A")
	}
	if st := c.Commands["X_FF_Reset"]; st.Repetitions != 3 || st.Delay != 250*time.Millisecond {
		t.Errorf("command state = %+v", st)
	}
	if a := got.Associations[3]; a.Controller != "aa:bb:cc:dd:ee:01" || !a.Enabled {
		t.Errorf("unit 3 = %+v", a)
	}
	if m, ok := got.Macros.Global["warmup"]; !ok || len(m.Sequence) != 1 {
		t.Errorf("macro warmup = %+v, ok=%v", m, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePermissions {
		t.Errorf("permissions = %o, want %o", perm, filePermissions)
	}
}

func TestJSONFileBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s := NewJSONFile(path)
	ctx := context.Background()

	first := sampleSnapshot()
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + BackupSuffix); !os.IsNotExist(err) {
		t.Error("backup should not exist after the first save")
	}

	second := sampleSnapshot()
	delete(second.Controllers, "aa:bb:cc:dd:ee:01")
	second.Associations[3] = registry.Association{Unit: 3}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	backup := NewJSONFile(path + BackupSuffix)
	prev, err := backup.Load(ctx)
	if err != nil {
		t.Fatalf("Load(backup) error = %v", err)
	}
	if _, ok := prev.Controllers["aa:bb:cc:dd:ee:01"]; !ok {
		t.Error("backup should hold the previous document")
	}

	cur, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cur.Controllers) != 0 {
		t.Errorf("Controllers = %d, want 0", len(cur.Controllers))
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestJSONFileLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed", content: "{not json"},
		{name: "newer format", content: `{"version": 99, "registry": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := NewJSONFile(path).Load(context.Background()); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestJSONFileSaveCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewJSONFile(path).Save(ctx, sampleSnapshot()); err == nil {
		t.Error("Save() with cancelled context should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not be written")
	}
}

func TestJSONFileWithRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	ctx := context.Background()

	reg := registry.New(NewJSONFile(path))
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := reg.RegisterController(ctx, registry.Controller{
		Address:   "AA:BB:CC:DD:EE:02",
		Source:    "02:00:00:00:00:01",
		Interface: "eth0",
	}); err != nil {
		t.Fatalf("RegisterController() error = %v", err)
	}
	if err := reg.AssociateUnit(ctx, 5, "aa:bb:cc:dd:ee:02"); err != nil {
		t.Fatalf("AssociateUnit() error = %v", err)
	}

	reloaded := registry.New(NewJSONFile(path))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reloaded.HasController("aa:bb:cc:dd:ee:02") {
		t.Error("controller not persisted")
	}
	a, err := reloaded.Unit(5)
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if a.Controller != "aa:bb:cc:dd:ee:02" {
		t.Errorf("unit 5 controller = %q", a.Controller)
	}
}
