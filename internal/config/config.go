// Package config holds all patternpilot configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"patternpilot/internal/logging"
)

// Config holds all patternpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend gateway connection
	Gateway GatewayConfig `yaml:"gateway"`

	// Cooperative timers
	Polling PollingConfig `yaml:"polling"`

	// Logging
	Logging logging.Config `yaml:"logging"`
}

// GatewayConfig configures the websocket link to the backend host process.
// Durations are strings ("30s") so the yaml stays hand-editable.
type GatewayConfig struct {
	URL          string `yaml:"url"`
	DialTimeout  string `yaml:"dial_timeout"`
	PingInterval string `yaml:"ping_interval"`
	ReconnectMin string `yaml:"reconnect_min"`
	ReconnectMax string `yaml:"reconnect_max"`
}

// PollingConfig configures the periodic action-count refresh used while a
// recording session is active.
type PollingConfig struct {
	ActionCountInterval string `yaml:"action_count_interval"`
}

// DefaultConfig returns the defaults for a local backend.
func DefaultConfig() Config {
	return Config{
		Name:    "patternpilot",
		Version: "0.1.0",
		Gateway: GatewayConfig{
			URL:          "ws://127.0.0.1:8719/gateway",
			DialTimeout:  "10s",
			PingInterval: "30s",
			ReconnectMin: "500ms",
			ReconnectMax: "15s",
		},
		Polling: PollingConfig{
			ActionCountInterval: "2s",
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads config from path and applies env overrides. A missing file is
// not an error: defaults plus overrides are returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as yaml, creating parent directories.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides lets the environment win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PATTERNPILOT_GATEWAY_URL"); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv("PATTERNPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Duration parses a duration string with a fallback for empty or bad values.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
