package engine

import "github.com/jmylchreest/toastd/internal/model"

// SurfaceProvider creates and drives the top-level surfaces toasts are shown in.
// Surfaces are identified by the id the engine passes to CreateSurface.
//
// The engine never holds its lock while calling a provider, so implementations
// may call back into the Manager (for example SurfaceReady) from any method.
type SurfaceProvider interface {
	// CreateSurface creates and shows a new surface loading contentRef.
	CreateSurface(id, contentRef string, width, height int) error
	Show(id string) error
	Hide(id string) error
	// Focus asks the window system to raise the surface. Failures are ignored.
	Focus(id string) error
	Close(id string) error
	SetPosition(id string, x, y int) error
	// MeasuredSize reports the surface's actual size, which can differ from
	// the requested size because of DPI rounding.
	MeasuredSize(id string) (width, height int, err error)
	// SendPayload pushes the notification to the surface's content.
	SendPayload(id string, n model.Notification) error
}

// Display describes the primary monitor.
type Display struct {
	Width       int
	Height      int
	ScaleFactor float64
}

// MonitorProvider reports primary display geometry.
type MonitorProvider interface {
	PrimaryDisplay() (Display, error)
}
