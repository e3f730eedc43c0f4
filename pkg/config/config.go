package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values come from defaults, then
// an optional YAML file, then command-line flags.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listenAddr"`

	// DataDir holds event payloads; ConfigDir holds topic configuration and
	// the consumer database. Both default under BaseDir when empty.
	BaseDir   string `yaml:"baseDir"`
	DataDir   string `yaml:"dataDir"`
	ConfigDir string `yaml:"configDir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// MaxPayloadBytes caps a single event payload.
	MaxPayloadBytes int64 `yaml:"maxPayloadBytes"`

	Dispatch DispatchConfig `yaml:"dispatch"`
	Admin    AdminConfig    `yaml:"admin"`

	// SessionTTL bounds login session lifetime.
	SessionTTL time.Duration `yaml:"sessionTTL"`

	// ReconcileInterval is how often projections re-read their topic tails.
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
}

// DispatchConfig tunes the delivery loops.
type DispatchConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
	BatchMax     int           `yaml:"batchMax"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

// AdminConfig seeds the initial administrator during bootstrap. Password is
// read from the environment when the field is empty.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		BaseDir:         "./burrow-data",
		LogLevel:        "info",
		MaxPayloadBytes: 1 << 20,
		Dispatch: DispatchConfig{
			TickInterval: 5 * time.Second,
			BatchMax:     100,
			MaxAttempts:  5,
		},
		Admin: AdminConfig{
			Email: "admin@localhost",
		},
		SessionTTL:        24 * time.Hour,
		ReconcileInterval: 30 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Finalize fills derived fields and validates. ADMIN_PASSWORD from the
// environment overrides the file so the secret stays out of config files.
func (c *Config) Finalize() error {
	if c.DataDir == "" {
		c.DataDir = c.BaseDir + "/events"
	}
	if c.ConfigDir == "" {
		c.ConfigDir = c.BaseDir + "/config"
	}
	if pw := os.Getenv("BURROW_ADMIN_PASSWORD"); pw != "" {
		c.Admin.Password = pw
	}
	if c.Dispatch.TickInterval <= 0 {
		return fmt.Errorf("dispatch.tickInterval must be positive")
	}
	if c.Dispatch.BatchMax <= 0 {
		return fmt.Errorf("dispatch.batchMax must be positive")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch.maxAttempts must be positive")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("maxPayloadBytes must be positive")
	}
	return nil
}
