package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
	"github.com/nerrad567/scanctl/internal/registry"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// writeTestConfig writes a config with every path inside a temp dir.
func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
storage:
  backend: ` + backend + `
  path: ` + filepath.Join(dir, "registry.json") + `
  retain: 5

database:
  path: ` + filepath.Join(dir, "scanctl.db") + `
  wal_mode: true
  busy_timeout: 5

network:
  interface: eth0

logging:
  level: error
  format: text
  output: stderr

security:
  jwt:
    secret: "` + testSecret + `"
    token_ttl: 15
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", cfgPath, "--operator", "tester"}, args...))

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("scanctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// TestRun_InvalidConfig verifies commands fail with a missing config file.
func TestRun_InvalidConfig(t *testing.T) {
	_, err := runCLI(t, "/nonexistent/path/config.yaml", "controllers", "list")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/config.yaml") {
		t.Errorf("error should name the config path, got %v", err)
	}
}

func TestRun_InvalidBackend(t *testing.T) {
	cfgPath := writeTestConfig(t, "etcd")
	if _, err := runCLI(t, cfgPath, "units", "list"); err == nil {
		t.Fatal("expected validation error for unknown storage backend")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("flag wins over environment", func(t *testing.T) {
		t.Setenv(config.EnvConfigPath, "/from/env.yaml")
		opts := &rootOptions{configPath: "/from/flag.yaml"}
		if got := opts.resolveConfigPath(); got != "/from/flag.yaml" {
			t.Errorf("resolveConfigPath() = %q, want /from/flag.yaml", got)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(config.EnvConfigPath, "/from/env.yaml")
		opts := &rootOptions{}
		if got := opts.resolveConfigPath(); got != "/from/env.yaml" {
			t.Errorf("resolveConfigPath() = %q, want /from/env.yaml", got)
		}
	})

	t.Run("defaults when nothing is set", func(t *testing.T) {
		t.Setenv(config.EnvConfigPath, "")
		t.Chdir(t.TempDir())
		opts := &rootOptions{}
		if got := opts.resolveConfigPath(); got != "" {
			t.Errorf("resolveConfigPath() = %q, want empty", got)
		}
	})
}

func TestActor(t *testing.T) {
	opts := &rootOptions{operator: "alice"}
	actor := opts.actor()
	if actor.Operator != "alice" {
		t.Errorf("Operator = %q, want alice", actor.Operator)
	}
	if actor.Source != "cli" {
		t.Errorf("Source = %q, want cli", actor.Source)
	}
}

func TestControllers_AddListShow(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)

	out := mustRun(t, cfgPath, "controllers", "add", "AA-BB-CC-DD-EE-01", "--label", "bay one")
	if !strings.Contains(out, "registered aa:bb:cc:dd:ee:01") {
		t.Errorf("add output = %q", out)
	}

	out = mustRun(t, cfgPath, "controllers", "list")
	if !strings.Contains(out, "aa:bb:cc:dd:ee:01") || !strings.Contains(out, "bay one") {
		t.Errorf("list output missing controller:\n%s", out)
	}

	mustRun(t, cfgPath, "controllers", "set", "aa:bb:cc:dd:ee:01", "X_FF_Reset", "-r", "4", "-d", "50ms")

	out = mustRun(t, cfgPath, "controllers", "show", "aa:bb:cc:dd:ee:01", "--json")
	var c registry.Controller
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("show --json is not JSON: %v\n%s", err, out)
	}
	st, ok := c.Commands["X_FF_Reset"]
	if !ok || !st.Enabled {
		t.Fatalf("X_FF_Reset not enabled: %+v", c.Commands)
	}
	if st.Repetitions != 4 || st.Delay != 50*time.Millisecond {
		t.Errorf("state = %+v, want 4 repetitions and 50ms", st)
	}

	if _, err := runCLI(t, cfgPath, "controllers", "add", "aa:bb:cc:dd:ee:01"); err == nil {
		t.Error("expected error registering a duplicate controller")
	}
	if _, err := runCLI(t, cfgPath, "controllers", "add", "not-an-address"); err == nil {
		t.Error("expected error for an invalid address")
	}

	mustRun(t, cfgPath, "controllers", "remove", "aa:bb:cc:dd:ee:01")
	out = mustRun(t, cfgPath, "controllers", "list")
	if strings.Contains(out, "aa:bb:cc:dd:ee:01") {
		t.Errorf("controller still listed after remove:\n%s", out)
	}
}

func TestUnits_BindEnable(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendSQLite)

	mustRun(t, cfgPath, "controllers", "add", "aa:bb:cc:dd:ee:02", "-l", "north")
	mustRun(t, cfgPath, "units", "bind", "3", "aa:bb:cc:dd:ee:02")
	mustRun(t, cfgPath, "units", "enable", "3")

	out := mustRun(t, cfgPath, "units", "list")
	if !strings.Contains(out, "aa:bb:cc:dd:ee:02") || !strings.Contains(out, "north") {
		t.Errorf("units list missing binding:\n%s", out)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unit out of range", []string{"units", "bind", "11", "aa:bb:cc:dd:ee:02"}},
		{"unit not a number", []string{"units", "enable", "three"}},
		{"unknown controller", []string{"units", "bind", "4", "aa:bb:cc:dd:ee:99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, cfgPath, tt.args...); err == nil {
				t.Errorf("scanctl %s: expected error", strings.Join(tt.args, " "))
			}
		})
	}
}

func TestMacros_ImportShowDelete(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)

	file := filepath.Join(t.TempDir(), "reset.yaml")
	content := `
sequence: [X_FF_Reset]
state:
  X_FF_Reset: {enabled: true, repetitions: 3, delay: 100ms}
`
	if err := os.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, cfgPath, "macros", "import", "reset", file)
	if !strings.Contains(out, "saved reset") {
		t.Errorf("import output = %q", out)
	}

	out = mustRun(t, cfgPath, "macros", "show", "reset")
	for _, want := range []string{"X_FF_Reset", "repetitions: 3", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfgPath, "macros", "list")
	if !strings.Contains(out, "reset") {
		t.Errorf("list output missing macro:\n%s", out)
	}

	mustRun(t, cfgPath, "macros", "rename", "reset", "full-reset")
	mustRun(t, cfgPath, "macros", "delete", "full-reset")
	if _, err := runCLI(t, cfgPath, "macros", "delete", "full-reset"); err == nil {
		t.Error("expected error deleting a missing macro")
	}
}

func TestMacros_ImportUnknownGroup(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
state:
  X_99_Unknown: {enabled: true}
`
	if err := os.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, cfgPath, "macros", "import", "bad", file); err == nil {
		t.Error("expected error importing a macro with an unknown group")
	}
}

func TestCatalog(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)

	out := mustRun(t, cfgPath, "catalog", "groups")
	for _, want := range []string{"X_FF_Reset", "X_04_RO_ON | X_05_RO_OFF", "ON/OFF"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog groups missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfgPath, "catalog", "commands")
	if !strings.Contains(out, "0xFF") {
		t.Errorf("catalog commands missing reset code:\n%s", out)
	}
}

func TestHistoryAndAudit(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)

	out := mustRun(t, cfgPath, "history", "list")
	if !strings.Contains(out, "0 of 0 runs") {
		t.Errorf("history list on empty database = %q", out)
	}

	mustRun(t, cfgPath, "controllers", "add", "aa:bb:cc:dd:ee:03")
	out = mustRun(t, cfgPath, "audit", "--json")
	if !strings.Contains(out, `"operator": "tester"`) || !strings.Contains(out, "aa:bb:cc:dd:ee:03") {
		t.Errorf("audit log missing registration:\n%s", out)
	}

	if _, err := runCLI(t, cfgPath, "history", "show", "no-such-run"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestSend_UnknownController(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)
	if _, err := runCLI(t, cfgPath, "send", "aa:bb:cc:dd:ee:42", "-q"); err == nil {
		t.Error("expected error sending to an unregistered controller")
	}
}

func TestOperatorsAndToken(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendJSON)
	t.Setenv(envOperatorPassword, "correct-horse-battery")

	out := mustRun(t, cfgPath, "operators", "add", "ops1", "--role", "viewer")
	if !strings.Contains(out, "created ops1 (viewer)") {
		t.Errorf("add output = %q", out)
	}
	if _, err := runCLI(t, cfgPath, "operators", "add", "ops2", "--role", "root"); err == nil {
		t.Error("expected error for invalid role")
	}

	out = mustRun(t, cfgPath, "operators", "list")
	if !strings.Contains(out, "ops1") {
		t.Errorf("list output missing operator:\n%s", out)
	}

	token := strings.TrimSpace(mustRun(t, cfgPath, "token", "ops1"))
	claims, err := auth.ParseToken(token, auth.TokenConfig{Secret: testSecret, Issuer: "scanctl"})
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Role != auth.RoleViewer {
		t.Errorf("token role = %q, want viewer", claims.Role)
	}

	mustRun(t, cfgPath, "operators", "remove", "ops1")
	if _, err := runCLI(t, cfgPath, "token", "ops1"); err == nil {
		t.Error("expected error issuing a token for a removed operator")
	}
}

func TestReadPassword(t *testing.T) {
	var prompt bytes.Buffer

	t.Setenv(envOperatorPassword, "")
	got, err := readPassword(strings.NewReader("piped-password\n"), &prompt, "Password: ")
	if err != nil {
		t.Fatalf("readPassword: %v", err)
	}
	if got != "piped-password" {
		t.Errorf("readPassword = %q, want piped-password", got)
	}

	if _, err := readPassword(strings.NewReader("short\n"), &prompt, "Password: "); err == nil {
		t.Error("expected error for a short password")
	}
}

func TestDB_StatusBackupSnapshots(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendSQLite)

	out := mustRun(t, cfgPath, "db", "status")
	if !strings.Contains(out, "applied") {
		t.Errorf("db status output:\n%s", out)
	}

	mustRun(t, cfgPath, "controllers", "add", "aa:bb:cc:dd:ee:04")
	out = mustRun(t, cfgPath, "db", "snapshots")
	if !strings.Contains(out, "VERSION") {
		t.Errorf("db snapshots output:\n%s", out)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	mustRun(t, cfgPath, "db", "backup", dest)
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("backup file not written: %v", err)
	}

	jsonCfg := writeTestConfig(t, config.BackendJSON)
	if _, err := runCLI(t, jsonCfg, "db", "snapshots"); err == nil {
		t.Error("expected error listing snapshots on the json backend")
	}
	if _, err := runCLI(t, jsonCfg, "db", "migrate-down"); err == nil {
		t.Error("expected migrate-down to refuse without --yes")
	}

	// controllers add wrote one audit entry; it is newer than the cutoff.
	out = mustRun(t, cfgPath, "db", "prune-audit", "--older-than", "1h")
	if !strings.Contains(out, "0 audit entries removed") {
		t.Errorf("prune-audit output:\n%s", out)
	}
	if _, err := runCLI(t, cfgPath, "db", "prune-audit", "--older-than", "0s"); err == nil {
		t.Error("expected prune-audit to reject a zero cutoff")
	}
}
