// Package config loads and saves the Cowork client settings file.
//
// Settings live in settings.yaml under the config directory resolved by the
// paths package. Missing file means defaults; unknown keys are ignored so
// older clients can read newer files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mweinbach/cowork/paths"
)

// DefaultServerURL is used when the settings file does not name a server.
const DefaultServerURL = "ws://127.0.0.1:4820/session"

// Default reconnect backoff bounds for the transport.
const (
	DefaultReconnectMin = 500 * time.Millisecond
	DefaultReconnectMax = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// ServerURL is the websocket endpoint of the session server,
	// e.g. "ws://127.0.0.1:4820/session".
	ServerURL string `yaml:"server_url"`

	// DefaultProvider and DefaultModel are applied with set_model after
	// connecting when non-empty.
	DefaultProvider string `yaml:"default_provider,omitempty"`
	DefaultModel    string `yaml:"default_model,omitempty"`

	// EnableMCP toggles MCP tool availability on the server session.
	EnableMCP bool `yaml:"enable_mcp,omitempty"`

	// Reconnect controls the transport's auto-reconnect backoff.
	ReconnectMinMs int `yaml:"reconnect_min_ms,omitempty"`
	ReconnectMaxMs int `yaml:"reconnect_max_ms,omitempty"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// Load reads the config from disk, or returns defaults if it doesn't exist.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path. Used by Load and by tests.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{filePath: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero-valued fields. Not thread-safe; call only during
// single-threaded initialization.
func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.ReconnectMinMs <= 0 {
		c.ReconnectMinMs = int(DefaultReconnectMin / time.Millisecond)
	}
	if c.ReconnectMaxMs <= 0 {
		c.ReconnectMaxMs = int(DefaultReconnectMax / time.Millisecond)
	}
	if c.ReconnectMaxMs < c.ReconnectMinMs {
		c.ReconnectMaxMs = c.ReconnectMinMs
	}
}

// Save writes the config to disk atomically (temp file + rename).
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	tmp := c.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.filePath)
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// ReconnectMin returns the minimum reconnect backoff as a duration.
func (c *Config) ReconnectMin() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.ReconnectMinMs) * time.Millisecond
}

// ReconnectMax returns the maximum reconnect backoff as a duration.
func (c *Config) ReconnectMax() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.ReconnectMaxMs) * time.Millisecond
}
