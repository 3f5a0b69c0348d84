// Package config provides TOML configuration file loading and parsing for the
// wakesentry host. The configuration file lives at ~/.wakesentry/config.toml
// by default, but can be overridden with the --config flag. CLI flags always
// take precedence over file values.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/wakesentry/host/internal/interval"
)

// Config represents the host configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags.
type Config struct {
	// Addr is the host:port for the observer HTTP/WebSocket server.
	// Default: 127.0.0.1:7188
	Addr string `toml:"addr"`

	// Store is the path to the SQLite database for preferences and the
	// session audit log. Default: ~/.wakesentry/wakesentry.db
	Store string `toml:"store"`

	// TokenFile is the path to the control token file used to authenticate
	// mutation requests. Default: ~/.wakesentry/control.token
	TokenFile string `toml:"token_file"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// DefaultIntervalSecs is the keep-awake interval preselected for new
	// sessions and restored when a session ends. Must be a catalog value;
	// anything else falls back to indefinite (0). Default: 0
	DefaultIntervalSecs int `toml:"default_interval_secs"`

	// ActivateAtLaunch starts a keep-awake session (with the default
	// interval) as soon as the host starts. Default: false
	ActivateAtLaunch bool `toml:"activate_at_launch"`

	// DeactivateOnBattery cancels an active session when the host switches
	// to battery power. Default: false
	DeactivateOnBattery bool `toml:"deactivate_on_battery"`

	// BatteryPollSecs is the battery state polling cadence when
	// DeactivateOnBattery is enabled. Default: 30
	BatteryPollSecs int `toml:"battery_poll_secs"`

	// RequireAuth enables bearer-token authentication for mutation
	// endpoints. Default: true
	RequireAuth bool `toml:"require_auth"`

	// AuditMaxRows bounds the session audit log; oldest rows are pruned
	// beyond this count. Negative disables pruning. Default: 1000
	AuditMaxRows int `toml:"audit_max_rows"`
}

// DefaultConfigPath returns the default config file location:
// ~/.wakesentry/config.toml. Returns an error only if the user's home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wakesentry", "config.toml"), nil
}

// Load reads a TOML config file from the given path and returns a Config with
// defaults applied.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns a default Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		// No explicit path: try default location, but don't error if missing.
		// This allows the host to start without any config file.
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			cfg.applyDefaults()
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// require_auth defaults to true only when absent from the file.
	if !md.IsDefined("require_auth") {
		cfg.RequireAuth = true
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.BatteryPollSecs <= 0 {
		c.BatteryPollSecs = DefaultBatteryPollSecs
	}
	if c.AuditMaxRows == 0 {
		c.AuditMaxRows = DefaultAuditMaxRows
	}
	if c.Store == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store = filepath.Join(home, ".wakesentry", "wakesentry.db")
		}
	}
	if c.TokenFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.TokenFile = filepath.Join(home, ".wakesentry", "control.token")
		}
	}
}

// DefaultInterval validates DefaultIntervalSecs against the catalog.
// Non-catalog values fall back to Indefinite with a warning; a malformed
// preference must never keep the host from starting.
func (c *Config) DefaultInterval() interval.Interval {
	iv, err := interval.FromSeconds(c.DefaultIntervalSecs)
	if err != nil {
		log.Printf("config: invalid default_interval_secs=%d, falling back to indefinite", c.DefaultIntervalSecs)
		return interval.Indefinite
	}
	return iv
}

// WriteDefault creates a config file with sensible defaults at the given
// path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `# Wakesentry configuration
# Created by 'wakesentry start'

# Listen address for the observer API (localhost only by default)
addr = "127.0.0.1:7188"

# Require the control token for schedule/cancel requests
require_auth = true

# Keep-awake interval in seconds preselected for new sessions.
# Allowed: 0 (indefinite), 300, 600, 900, 1800, 3600, 7200, 18000
default_interval_secs = 0
`

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
