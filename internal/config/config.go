// Package config loads the static rove configuration. The configuration is
// read once at startup and treated as immutable for the lifetime of the
// event loop.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration structure.
type Config struct {
	General struct {
		StartDir   string `yaml:"start_dir"`   // Initial directory (defaults to cwd)
		ShowHidden bool   `yaml:"show_hidden"` // Include dotfiles in listings
		Sort       string `yaml:"sort"`        // name, size, or modified
		Debug      bool   `yaml:"debug"`       // Debug-level logging
	} `yaml:"general"`
	Timing struct {
		DebounceWindowMs   int `yaml:"debounce_window_ms"`   // Scan request collapse window
		SequenceTimeoutMs  int `yaml:"sequence_timeout_ms"`  // Abandoned key sequence reset
		TickIntervalMs     int `yaml:"tick_interval_ms"`     // Clock tick period
		WorkerCount        int `yaml:"worker_count"`         // Filesystem worker pool size
	} `yaml:"timing"`
	Search struct {
		Fuzzy bool `yaml:"fuzzy"` // Fuzzy name matching instead of substring
	} `yaml:"search"`
	Ignore  []string          `yaml:"ignore"`  // Glob patterns hidden from listings
	Aliases map[string]string `yaml:"aliases"` // Command alias -> canonical command
	Keymap  map[string]string `yaml:"keymap"`  // Key override -> builtin key name
}

// New returns the default configuration.
func New() *Config {
	cfg := &Config{}
	cfg.General.Sort = "name"
	cfg.Timing.DebounceWindowMs = 40
	cfg.Timing.SequenceTimeoutMs = 1000
	cfg.Timing.TickIntervalMs = 150
	cfg.Timing.WorkerCount = 4
	cfg.Aliases = map[string]string{
		"rm": "delete",
		"cp": "copy",
		"mv": "move",
	}
	cfg.Keymap = map[string]string{}
	return cfg
}

// LoadConfig loads configuration from the default location
// (~/.config/rove/config.yaml).
func LoadConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(filepath.Join(home, ".config", "rove", "config.yaml"))
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Unmarshal into a temporary config to preserve defaults for unset fields
	var tempCfg Config
	if err := yaml.Unmarshal(data, &tempCfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if tempCfg.General.StartDir != "" {
		cfg.General.StartDir = tempCfg.General.StartDir
	}
	cfg.General.ShowHidden = tempCfg.General.ShowHidden
	cfg.General.Debug = tempCfg.General.Debug
	if tempCfg.General.Sort != "" {
		cfg.General.Sort = tempCfg.General.Sort
	}
	if tempCfg.Timing.DebounceWindowMs > 0 {
		cfg.Timing.DebounceWindowMs = tempCfg.Timing.DebounceWindowMs
	}
	if tempCfg.Timing.SequenceTimeoutMs > 0 {
		cfg.Timing.SequenceTimeoutMs = tempCfg.Timing.SequenceTimeoutMs
	}
	if tempCfg.Timing.TickIntervalMs > 0 {
		cfg.Timing.TickIntervalMs = tempCfg.Timing.TickIntervalMs
	}
	if tempCfg.Timing.WorkerCount > 0 {
		cfg.Timing.WorkerCount = tempCfg.Timing.WorkerCount
	}
	cfg.Search.Fuzzy = tempCfg.Search.Fuzzy
	if len(tempCfg.Ignore) > 0 {
		cfg.Ignore = tempCfg.Ignore
	}
	// User aliases extend the defaults rather than replacing them.
	for alias, command := range tempCfg.Aliases {
		cfg.Aliases[strings.ToLower(alias)] = strings.ToLower(command)
	}
	for key, target := range tempCfg.Keymap {
		cfg.Keymap[key] = target
	}

	return cfg, nil
}

// DebounceWindow returns the scan collapse window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Timing.DebounceWindowMs) * time.Millisecond
}

// SequenceTimeout returns the pending key sequence timeout as a duration.
func (c *Config) SequenceTimeout() time.Duration {
	return time.Duration(c.Timing.SequenceTimeoutMs) * time.Millisecond
}

// TickInterval returns the clock tick period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timing.TickIntervalMs) * time.Millisecond
}

// CompileIgnore compiles the ignore globs. An invalid pattern fails the
// whole set; the error surfaces at startup.
func (c *Config) CompileIgnore() ([]glob.Glob, error) {
	var patterns []glob.Glob
	for _, raw := range c.Ignore {
		p, err := glob.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", raw, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
