// Package config handles configuration file loading and parsing for toastd
// and toastctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// Default client configuration values.
const (
	DefaultFormat     = "plain"
	DefaultTimeFormat = "relative"
)

// Output formats understood by toastctl.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidFormats returns all valid output formats.
func ValidFormats() []string {
	return []string{FormatPlain, FormatJSON, FormatYAML}
}

// Config represents the toastctl configuration.
type Config struct {
	Output OutputConfig `toml:"output"`
	Send   SendConfig   `toml:"send"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format     string `toml:"format"`      // plain, json, yaml
	TimeFormat string `toml:"time_format"` // "relative" or a Go time layout
	Limit      int    `toml:"limit"`       // Max history entries shown (0 = all)
	Color      bool   `toml:"color"`
}

// SendConfig holds defaults for `toastctl send`.
type SendConfig struct {
	Type     string   `toml:"type"`     // Empty = daemon default
	Duration Duration `toml:"duration"` // 0 = daemon default
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format:     DefaultFormat,
			TimeFormat: DefaultTimeFormat,
			Limit:      0,
			Color:      true,
		},
	}
}

// configHome returns XDG_CONFIG_HOME, or ~/.config when unset.
func configHome() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return configHome
}

// ConfigPath returns the path to the toastctl config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	return filepath.Join(configHome(), "toastd", "toastctl.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(ValidFormats(), c.Output.Format) {
		return fmt.Errorf("invalid format %q, must be one of: %v", c.Output.Format, ValidFormats())
	}
	if c.Output.Limit < 0 {
		return fmt.Errorf("limit cannot be negative, got %d", c.Output.Limit)
	}
	if c.Send.Duration < 0 {
		return fmt.Errorf("send duration cannot be negative, got %s", c.Send.Duration.Duration())
	}
	return nil
}
