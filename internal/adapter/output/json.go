package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// JSONFormatter writes indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Format writes notifications as a JSON array. An empty list is written as [].
func (f *JSONFormatter) Format(w io.Writer, notifications []model.Notification) error {
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return f.encode(w, notifications)
}

// FormatPool writes the pool summary as a JSON object.
func (f *JSONFormatter) FormatPool(w io.Writer, status engine.PoolStatus) error {
	return f.encode(w, status)
}

// FormatStatus writes the engine summary as a JSON object.
func (f *JSONFormatter) FormatStatus(w io.Writer, status engine.Status) error {
	return f.encode(w, status)
}
