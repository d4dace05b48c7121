// Package output renders toastd state for toastctl.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// Formatter renders notifications and engine summaries.
type Formatter interface {
	// Format writes a list of notifications.
	Format(w io.Writer, notifications []model.Notification) error
	FormatPool(w io.Writer, status engine.PoolStatus) error
	FormatStatus(w io.Writer, status engine.Status) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// TimeRelative renders timestamps as "3 minutes ago".
const TimeRelative = "relative"

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatPlain, "":
		return NewPlainFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// FormatterOptions configures the plain formatter.
type FormatterOptions struct {
	TimeFormat string // TimeRelative or a Go time layout
	Color      bool
	ShowIndex  bool // Show 1-based index prefix
	BodyMaxLen int  // Maximum body length (0 = unlimited)
}

// DefaultFormatterOptions returns the defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		TimeFormat: TimeRelative,
		Color:      true,
		ShowIndex:  true,
		BodyMaxLen: 80,
	}
}
