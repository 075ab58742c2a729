// Package config provides configuration parsing for core-pulse.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/core-pulse/display/color"
)

// Config represents the core-pulse configuration.
type Config struct {
	// Sampling holds reader cadence and window settings.
	Sampling SamplingConfig `yaml:"sampling"`

	// Display holds rendering settings.
	Display DisplayConfig `yaml:"display"`

	// Log holds diagnostic logging settings.
	Log LogConfig `yaml:"log"`
}

// SamplingConfig holds reader cadence and window settings.
type SamplingConfig struct {
	// Interval is a duration string (e.g. "200ms") between two counter reads.
	Interval string `yaml:"interval"`
	// Window is the number of analysis cycles averaged into one frame.
	Window int `yaml:"window"`
}

// DisplayConfig holds rendering settings.
type DisplayConfig struct {
	// Mode selects the front end: "terminal" or "tui".
	Mode string `yaml:"mode"`
	// Color is "auto", "always" or "never".
	Color string `yaml:"color"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// File is an optional log file path. Empty means stderr.
	File string `yaml:"file"`
}

const (
	ModeTerminal = "terminal"
	ModeTUI      = "tui"
)

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Interval: "200ms",
			Window:   5,
		},
		Display: DisplayConfig{
			Mode:  ModeTerminal,
			Color: "auto",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// DefaultPath returns ~/.config/core-pulse/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "core-pulse", "config.yaml")
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	if c.Sampling.Interval == "" {
		return fmt.Errorf("sampling.interval is required")
	}
	d, err := time.ParseDuration(c.Sampling.Interval)
	if err != nil {
		return fmt.Errorf("sampling.interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("sampling.interval must be positive, got %q", c.Sampling.Interval)
	}
	if c.Sampling.Window < 1 {
		return fmt.Errorf("sampling.window must be at least 1, got %d", c.Sampling.Window)
	}

	if c.Display.Mode != ModeTerminal && c.Display.Mode != ModeTUI {
		return fmt.Errorf("display.mode must be 'terminal' or 'tui', got %q", c.Display.Mode)
	}
	if _, err := color.ParseMode(c.Display.Color); err != nil {
		return fmt.Errorf("display.color: %w", err)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

// SampleInterval returns the parsed sampling interval. Call Validate first.
func (c *Config) SampleInterval() time.Duration {
	d, _ := time.ParseDuration(c.Sampling.Interval)
	return d
}

// LogLevel maps Log.Level to a slog level. The empty string means warn.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be 'debug', 'info', 'warn' or 'error', got %q", c.Log.Level)
	}
}
