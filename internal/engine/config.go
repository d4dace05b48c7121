package engine

import (
	"fmt"
	"time"
)

// RetentionPolicy selects which pending notifications the cleanup pass may purge.
type RetentionPolicy int

const (
	// PurgeDisplayedOnly purges pending notifications whose first-displayed
	// timestamp is older than the retention TTL. Never-displayed ones are kept.
	PurgeDisplayedOnly RetentionPolicy = iota
	// PurgeAll additionally purges never-displayed notifications whose creation
	// time is older than the retention TTL.
	PurgeAll
)

// String returns the config spelling of the policy.
func (p RetentionPolicy) String() string {
	switch p {
	case PurgeAll:
		return "all"
	default:
		return "displayed-only"
	}
}

// ParseRetentionPolicy parses "displayed-only" or "all".
func ParseRetentionPolicy(s string) (RetentionPolicy, error) {
	switch s {
	case "", "displayed-only":
		return PurgeDisplayedOnly, nil
	case "all":
		return PurgeAll, nil
	default:
		return PurgeDisplayedOnly, fmt.Errorf("invalid retention policy %q, must be \"displayed-only\" or \"all\"", s)
	}
}

// Config holds the engine parameters. It is copied into the Manager at
// construction and never changes afterwards.
type Config struct {
	MaxWindows      int           // Cap on active + idle + reserved surfaces
	MaxIdle         int           // Hidden spares kept for reuse; beyond this, freed surfaces are destroyed
	MaxHistorySize  int           // History is trimmed from the oldest end above this
	CleanupInterval time.Duration // Minimum time between lazy cleanup passes
	RetentionTTL    time.Duration // Age after which pending notifications are purged
	RetentionPolicy RetentionPolicy

	Width  int // Nominal surface width
	Height int // Nominal surface height, used until a surface reports its measured size
	Margin int // Gap between stacked surfaces and from the screen edge

	DefaultDuration int    // Seconds, used when a producer does not request one
	DefaultType     string // Used when a producer does not set a type tag
	ContentRef      string // Passed to the surface provider for every created surface
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxWindows:      4,
		MaxIdle:         4,
		MaxHistorySize:  100,
		CleanupInterval: time.Minute,
		RetentionTTL:    24 * time.Hour,
		RetentionPolicy: PurgeDisplayedOnly,
		Width:           400,
		Height:          150,
		Margin:          10,
		DefaultDuration: 5,
		DefaultType:     "new_message",
		ContentRef:      "/notification",
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxWindows < 1 {
		return fmt.Errorf("max_windows must be at least 1, got %d", c.MaxWindows)
	}
	if c.MaxIdle < 0 || c.MaxIdle > c.MaxWindows {
		return fmt.Errorf("max_idle must be between 0 and max_windows (%d), got %d", c.MaxWindows, c.MaxIdle)
	}
	if c.MaxHistorySize < 0 {
		return fmt.Errorf("max_history_size cannot be negative, got %d", c.MaxHistorySize)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("cleanup_interval cannot be negative, got %s", c.CleanupInterval)
	}
	if c.RetentionTTL <= 0 {
		return fmt.Errorf("retention must be positive, got %s", c.RetentionTTL)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("surface size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Margin < 0 {
		return fmt.Errorf("margin cannot be negative, got %d", c.Margin)
	}
	if c.DefaultDuration < 0 {
		return fmt.Errorf("default duration cannot be negative, got %d", c.DefaultDuration)
	}
	return nil
}
