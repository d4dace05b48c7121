package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// YAMLFormatter writes YAML documents.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// Format writes notifications as a YAML sequence.
func (f *YAMLFormatter) Format(w io.Writer, notifications []model.Notification) error {
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return f.encode(w, notifications)
}

// FormatPool writes the pool summary as a YAML mapping.
func (f *YAMLFormatter) FormatPool(w io.Writer, status engine.PoolStatus) error {
	return f.encode(w, status)
}

// FormatStatus writes the engine summary as a YAML mapping.
func (f *YAMLFormatter) FormatStatus(w io.Writer, status engine.Status) error {
	return f.encode(w, status)
}
