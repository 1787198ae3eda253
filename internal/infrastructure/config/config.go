package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "SCANCTL_CONFIG"

// Config is the root configuration structure for scanctl.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Console   ConsoleConfig   `yaml:"console"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ConsoleConfig identifies this console instance.
type ConsoleConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StorageConfig selects where the registry snapshot lives.
type StorageConfig struct {
	// Backend is "json" (single document at Path) or "sqlite" (the
	// registry_snapshots table of the database).
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`

	// Retain is the number of snapshot rows the sqlite backend keeps.
	Retain int `yaml:"retain"`
}

// DatabaseConfig contains SQLite database settings. The database holds
// dispatch history and the audit trail for every backend.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// DispatchConfig controls how batches are scheduled.
type DispatchConfig struct {
	Parallel    bool `yaml:"parallel"`
	MaxParallel int  `yaml:"max_parallel"`
	StopOnError bool `yaml:"stop_on_error"`
}

// NetworkConfig controls adapter discovery.
type NetworkConfig struct {
	// Interface is the default adapter used when registering controllers.
	Interface       string   `yaml:"interface"`
	ExcludePrefixes []string `yaml:"exclude_prefixes"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains operator token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// TokenTTL is the operator token lifetime in minutes.
	TokenTTL int    `yaml:"token_ttl"`
	Issuer   string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SCANCTL_SECTION_KEY
// For example: SCANCTL_STORAGE_PATH, SCANCTL_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			ID:   "console-001",
			Name: "scanctl",
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
			Path:    "./data/registry.json",
			Retain:  20,
		},
		Database: DatabaseConfig{
			Path:        "./data/scanctl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Dispatch: DispatchConfig{
			Parallel:    true,
			MaxParallel: 10,
		},
		Network: NetworkConfig{
			ExcludePrefixes: []string{"vir", "docker", "br-", "veth", "vmnet", "vboxnet"},
			ExcludeKeywords: []string{"wl", "wifi"},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scanctl",
			},
			QoS:         1,
			TopicPrefix: "scanctl",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "scanctl",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 480,
				Issuer:   "scanctl",
			},
		},
	}
}

// applyEnvOverrides applies SCANCTL_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"SCANCTL_STORAGE_BACKEND":   &cfg.Storage.Backend,
		"SCANCTL_STORAGE_PATH":      &cfg.Storage.Path,
		"SCANCTL_DATABASE_PATH":     &cfg.Database.Path,
		"SCANCTL_NETWORK_INTERFACE": &cfg.Network.Interface,
		"SCANCTL_MQTT_HOST":         &cfg.MQTT.Broker.Host,
		"SCANCTL_MQTT_USERNAME":     &cfg.MQTT.Auth.Username,
		"SCANCTL_MQTT_PASSWORD":     &cfg.MQTT.Auth.Password,
		"SCANCTL_API_HOST":          &cfg.API.Host,
		"SCANCTL_INFLUXDB_URL":      &cfg.InfluxDB.URL,
		"SCANCTL_INFLUXDB_TOKEN":    &cfg.InfluxDB.Token,
		"SCANCTL_LOG_LEVEL":         &cfg.Logging.Level,
		"SCANCTL_JWT_SECRET":        &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SCANCTL_API_PORT":              &cfg.API.Port,
		"SCANCTL_MQTT_PORT":             &cfg.MQTT.Broker.Port,
		"SCANCTL_DISPATCH_MAX_PARALLEL": &cfg.Dispatch.MaxParallel,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"SCANCTL_DISPATCH_PARALLEL":      &cfg.Dispatch.Parallel,
		"SCANCTL_DISPATCH_STOP_ON_ERROR": &cfg.Dispatch.StopOnError,
		"SCANCTL_MQTT_ENABLED":           &cfg.MQTT.Enabled,
		"SCANCTL_INFLUXDB_ENABLED":       &cfg.InfluxDB.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the configuration for errors.
// The JWT secret is checked separately by ValidateAPI since only the
// server needs it.
func (c *Config) Validate() error {
	var errs []string

	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the json backend")
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be %q or %q", BackendJSON, BackendSQLite))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Dispatch.MaxParallel < 0 {
		errs = append(errs, "dispatch.max_parallel must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// minJWTSecretLength is the shortest accepted signing secret.
const minJWTSecretLength = 32

// ValidateAPI checks settings required to serve the HTTP API.
func (c *Config) ValidateAPI() error {
	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("security.jwt.secret is required (set SCANCTL_JWT_SECRET environment variable)")
	}
	if len(c.Security.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf("security.jwt.secret must be at least %d characters", minJWTSecretLength)
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		return fmt.Errorf("api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTokenTTL returns the operator token lifetime.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
