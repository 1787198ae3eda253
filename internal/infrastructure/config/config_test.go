package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
console:
  id: "bench-1"
storage:
  backend: "sqlite"
database:
  path: "/tmp/scanctl-test.db"
dispatch:
  parallel: false
  stop_on_error: true
network:
  interface: "enp3s0"
  exclude_prefixes: ["docker", "tap"]
mqtt:
  enabled: true
  broker:
    host: "broker.local"
  qos: 2
api:
  port: 9000
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Console.ID != "bench-1" {
		t.Errorf("Console.ID = %q, want %q", cfg.Console.ID, "bench-1")
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendSQLite)
	}
	if cfg.Dispatch.Parallel || !cfg.Dispatch.StopOnError {
		t.Errorf("Dispatch = %+v", cfg.Dispatch)
	}
	if got := strings.Join(cfg.Network.ExcludePrefixes, ","); got != "docker,tap" {
		t.Errorf("Network.ExcludePrefixes = %q", got)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	// Unset fields keep their defaults.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if err := cfg.ValidateAPI(); err != nil {
		t.Errorf("ValidateAPI() error = %v", err)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendJSON)
	}
	if !cfg.Dispatch.Parallel {
		t.Error("Dispatch.Parallel should default to true")
	}
	if len(cfg.Network.ExcludeKeywords) != 2 {
		t.Errorf("Network.ExcludeKeywords = %v", cfg.Network.ExcludeKeywords)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "etcd"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("error = %v, want mention of storage.backend", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: "/from/file.json"
`)
	t.Setenv("SCANCTL_STORAGE_PATH", "/from/env.json")
	t.Setenv("SCANCTL_API_PORT", "9100")
	t.Setenv("SCANCTL_DISPATCH_STOP_ON_ERROR", "true")
	t.Setenv("SCANCTL_JWT_SECRET", validJWTSecret)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != "/from/env.json" {
		t.Errorf("Storage.Path = %q, want env override", cfg.Storage.Path)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if !cfg.Dispatch.StopOnError {
		t.Error("Dispatch.StopOnError should be overridden to true")
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Error("JWT secret should come from the environment")
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SCANCTL_API_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Error("Load() should reject a non-numeric port override")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}, wantErr: false},
		{name: "sqlite without storage path", modify: func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Storage.Path = ""
		}, wantErr: false},
		{name: "json without storage path", modify: func(c *Config) { c.Storage.Path = "" }, wantErr: true},
		{name: "empty database path", modify: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "negative max parallel", modify: func(c *Config) { c.Dispatch.MaxParallel = -1 }, wantErr: true},
		{name: "bad qos", modify: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "mqtt enabled without host", modify: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Host = ""
		}, wantErr: true},
		{name: "port zero", modify: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "influxdb enabled without url", modify: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		tls     TLSConfig
		wantErr bool
	}{
		{name: "valid", secret: validJWTSecret},
		{name: "missing secret", wantErr: true},
		{name: "short secret", secret: "too-short", wantErr: true},
		{name: "tls without files", secret: validJWTSecret, tls: TLSConfig{Enabled: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Security.JWT.Secret = tt.secret
			cfg.API.TLS = tt.tls
			if err := cfg.ValidateAPI(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPI() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := Default()
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v", got)
	}
	if got := cfg.GetTokenTTL(); got != 8*time.Hour {
		t.Errorf("GetTokenTTL() = %v", got)
	}
}
