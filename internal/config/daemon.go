package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
// A value of "0" or 0 means never expire.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Bare integers are milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d).Milliseconds())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for toastd.
// Loaded from ~/.config/toastd/toastd.toml
type DaemonConfig struct {
	Display  DisplayConfig  `toml:"display"`
	Pool     PoolConfig     `toml:"pool"`
	History  HistoryConfig  `toml:"history"`
	Defaults DefaultsConfig `toml:"defaults"`
	Audio    AudioConfig    `toml:"audio"`
	Behavior BehaviorConfig `toml:"behavior"`
}

// DisplayConfig contains surface geometry settings.
// Changing any of these requires a restart.
type DisplayConfig struct {
	Width   int    `toml:"width"`   // Nominal surface width in logical pixels
	Height  int    `toml:"height"`  // Nominal surface height until measured
	Margin  int    `toml:"margin"`  // Gap between surfaces and from the screen edge
	Monitor int    `toml:"monitor"` // 0 = primary, 1+ = specific monitor
	Content string `toml:"content"` // Content reference passed to every surface

	Stylesheet string `toml:"stylesheet"` // Optional user CSS, empty = built-in style
}

// PoolConfig contains surface pool settings.
type PoolConfig struct {
	MaxWindows int `toml:"max_windows"` // Cap on live surfaces
	MaxIdle    int `toml:"max_idle"`    // Hidden spares kept for reuse
}

// HistoryConfig contains history and retention settings.
type HistoryConfig struct {
	MaxSize         int      `toml:"max_size"`
	CleanupInterval Duration `toml:"cleanup_interval"`
	Retention       Duration `toml:"retention"`    // Age after which pending notifications are purged
	PurgePolicy     string   `toml:"purge_policy"` // "displayed-only" or "all"
}

// DefaultsConfig contains defaults for notifications that do not set them.
type DefaultsConfig struct {
	Duration Duration `toml:"duration"` // "0" = never auto-dismiss
	Type     string   `toml:"type"`
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool              `toml:"enabled"`
	Volume  int               `toml:"volume"` // 0-100
	Sounds  map[string]string `toml:"sounds"` // Notification type -> sound file
}

// BehaviorConfig contains daemon behavior settings.
type BehaviorConfig struct {
	InternalNotifications bool `toml:"internal_notifications"` // Toast config reload results
	HotReload             bool `toml:"hot_reload"`
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	ec := engine.DefaultConfig()
	return &DaemonConfig{
		Display: DisplayConfig{
			Width:   ec.Width,
			Height:  ec.Height,
			Margin:  ec.Margin,
			Monitor: 0,
			Content: ec.ContentRef,
		},
		Pool: PoolConfig{
			MaxWindows: ec.MaxWindows,
			MaxIdle:    ec.MaxIdle,
		},
		History: HistoryConfig{
			MaxSize:         ec.MaxHistorySize,
			CleanupInterval: Duration(ec.CleanupInterval),
			Retention:       Duration(ec.RetentionTTL),
			PurgePolicy:     ec.RetentionPolicy.String(),
		},
		Defaults: DefaultsConfig{
			Duration: Duration(time.Duration(ec.DefaultDuration) * time.Second),
			Type:     ec.DefaultType,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
			Sounds:  map[string]string{},
		},
		Behavior: BehaviorConfig{
			InternalNotifications: true,
			HotReload:             true,
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	home := configHome()
	if home == "" {
		return "", fmt.Errorf("unable to determine config directory")
	}
	return filepath.Join(home, "toastd", "toastd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from path, or from
// DaemonConfigPath when path is empty.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		var err error
		if path, err = DaemonConfigPath(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or to
// DaemonConfigPath when path is empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		var err error
		if path, err = DaemonConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Display.Width < 100 || c.Display.Width > 2000 {
		return fmt.Errorf("width must be between 100 and 2000, got %d", c.Display.Width)
	}
	if c.Display.Height < 20 || c.Display.Height > 2000 {
		return fmt.Errorf("height must be between 20 and 2000, got %d", c.Display.Height)
	}
	if c.Display.Monitor < 0 {
		return fmt.Errorf("monitor cannot be negative, got %d", c.Display.Monitor)
	}
	if c.Pool.MaxWindows < 1 || c.Pool.MaxWindows > 20 {
		return fmt.Errorf("max_windows must be between 1 and 20, got %d", c.Pool.MaxWindows)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Defaults.Duration < 0 {
		return fmt.Errorf("default duration cannot be negative, got %s", c.Defaults.Duration.Duration())
	}

	// Everything else is checked by the engine.
	ec, err := c.EngineConfig()
	if err != nil {
		return err
	}
	return ec.Validate()
}

// EngineConfig derives the immutable engine configuration.
func (c *DaemonConfig) EngineConfig() (engine.Config, error) {
	policy, err := engine.ParseRetentionPolicy(c.History.PurgePolicy)
	if err != nil {
		return engine.Config{}, err
	}

	ec := engine.DefaultConfig()
	ec.MaxWindows = c.Pool.MaxWindows
	ec.MaxIdle = c.Pool.MaxIdle
	ec.MaxHistorySize = c.History.MaxSize
	ec.CleanupInterval = c.History.CleanupInterval.Duration()
	ec.RetentionTTL = c.History.Retention.Duration()
	ec.RetentionPolicy = policy
	ec.Width = c.Display.Width
	ec.Height = c.Display.Height
	ec.Margin = c.Display.Margin
	ec.DefaultDuration = model.DurationSeconds(c.Defaults.Duration.Duration())
	if c.Defaults.Type != "" {
		ec.DefaultType = c.Defaults.Type
	}
	if c.Display.Content != "" {
		ec.ContentRef = c.Display.Content
	}
	return ec, nil
}

// RequiresRestart reports whether moving from old to c changes settings the
// running engine cannot pick up.
func (c *DaemonConfig) RequiresRestart(old *DaemonConfig) bool {
	return c.Display != old.Display || c.Pool != old.Pool || c.History != old.History
}

// SoundForType returns the sound file path for a notification type, falling
// back to the "default" entry. Expands ~ to home directory.
func (c *DaemonConfig) SoundForType(notificationType string) string {
	path, ok := c.Audio.Sounds[notificationType]
	if !ok {
		path = c.Audio.Sounds["default"]
	}
	return expandPath(path)
}

// StylesheetPath returns the user stylesheet path with ~ expanded.
func (c *DaemonConfig) StylesheetPath() string {
	return expandPath(c.Display.Stylesheet)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
