package display

import (
	"log/slog"
	"unsafe"

	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"

	"github.com/jmylchreest/toastd/internal/engine"
)

// Monitors reports the geometry of the monitor toasts are placed on.
type Monitors struct {
	monitor int // 0 = first monitor, 1+ = specific monitor (1-indexed)
	logger  *slog.Logger
}

// NewMonitors creates a monitor provider for the configured monitor number.
func NewMonitors(monitor int, logger *slog.Logger) *Monitors {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitors{monitor: monitor, logger: logger}
}

// PrimaryDisplay implements engine.MonitorProvider.
func (m *Monitors) PrimaryDisplay() (engine.Display, error) {
	var d engine.Display
	err := onMainThread(func() error {
		mon := m.current()
		if mon == nil {
			return &DisplayError{Message: "no monitor available"}
		}
		geom := mon.Geometry()
		d = engine.Display{
			Width:       geom.Width(),
			Height:      geom.Height(),
			ScaleFactor: float64(mon.ScaleFactor()),
		}
		return nil
	})
	return d, err
}

// current returns the configured monitor, falling back to the first one.
// Must be called on the main loop.
func (m *Monitors) current() *gdk.Monitor {
	display := gdk.DisplayGetDefault()
	if display == nil {
		return nil
	}

	monitors := display.Monitors()
	if monitors == nil || monitors.NItems() == 0 {
		m.logger.Warn("no monitors list available")
		return nil
	}

	index := uint(0)
	if m.monitor > 0 {
		index = uint(m.monitor - 1)
	}
	if index >= monitors.NItems() {
		m.logger.Warn("configured monitor not available, using first",
			"configured", m.monitor,
			"available", monitors.NItems(),
		)
		index = 0
	}

	return wrapMonitor(monitors.Item(index))
}

// wrapMonitor wraps a coreglib.Object as a gdk.Monitor.
// This is necessary because gotk4 doesn't expose the wrapMonitor function.
func wrapMonitor(obj *coreglib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	// gdk.Monitor embeds a *coreglib.Object, which is how gotk4 wraps it internally.
	type monitor struct {
		_ [0]func()
		*coreglib.Object
	}
	m := &monitor{Object: obj}
	return (*gdk.Monitor)(unsafe.Pointer(m))
}
