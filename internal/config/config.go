// Package config loads the engine configuration from a YAML file.
//
// All engine tunables flow from here; components never read files or
// environment themselves.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultDatabase       = "naptrack.db"
	DefaultConflictWindow = 5 * time.Second
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultResyncDays     = 30
)

// Duration wraps time.Duration with YAML support for strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Account identifies the configured remote account.
type Account struct {
	Email string `yaml:"email"`
}

// Config is the engine configuration.
type Config struct {
	// Database is the SQLite path for the local event store.
	Database string `yaml:"database"`

	// Account is the remote account this engine instance tracks.
	Account Account `yaml:"account"`

	// ConflictWindow bounds how long a pending optimistic action stays
	// authoritative over remote notifications.
	ConflictWindow Duration `yaml:"conflict_window"`

	// RemoteTimeout bounds every remote round trip.
	RemoteTimeout Duration `yaml:"remote_timeout"`

	// ResyncDays is how many days back a full resync refetches.
	ResyncDays int `yaml:"resync_days"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Database:       DefaultDatabase,
		ConflictWindow: Duration(DefaultConflictWindow),
		RemoteTimeout:  Duration(DefaultRemoteTimeout),
		ResyncDays:     DefaultResyncDays,
	}
}

// Load reads a YAML config file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.ConflictWindow.Std() <= 0 {
		return fmt.Errorf("conflict_window must be positive")
	}
	if c.RemoteTimeout.Std() <= 0 {
		return fmt.Errorf("remote_timeout must be positive")
	}
	if c.ResyncDays <= 0 {
		return fmt.Errorf("resync_days must be positive")
	}
	return nil
}

// ResyncWindow returns the resync horizon as a duration.
func (c Config) ResyncWindow() time.Duration {
	return time.Duration(c.ResyncDays) * 24 * time.Hour
}
