package display

import (
	"log/slog"
	"strings"

	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/toastd/internal/model"
)

// Namespace is the layer-shell namespace compositors see for toast surfaces.
const Namespace = "toastd-surface"

// Callbacks receive surface events. Each runs on its own goroutine, never on
// the main loop, so it may call straight into the engine.
type Callbacks struct {
	Ready     func(surfaceID string) // First map; the surface can take payloads
	Dismissed func(surfaceID string) // User closed the toast
	Destroyed func(surfaceID string) // Window went away without being asked to
}

// Surfaces implements engine.SurfaceProvider with layer-shell windows.
// The windows map is only touched on the main loop.
type Surfaces struct {
	app      *gtk.Application
	monitors *Monitors
	logger   *slog.Logger
	cb       Callbacks

	windows map[string]*surface
}

// surface is one toast window and its widgets.
type surface struct {
	id        string
	window    *gtk.Window
	box       *gtk.Box
	titleLbl  *gtk.Label
	bodyLbl   *gtk.Label
	closeBtn  *gtk.Button
	typeClass string
	width     int
	ready     bool
	closing   bool
}

// NewSurfaces creates a surface provider bound to app.
func NewSurfaces(app *gtk.Application, monitors *Monitors, logger *slog.Logger) *Surfaces {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surfaces{
		app:      app,
		monitors: monitors,
		logger:   logger,
		windows:  make(map[string]*surface),
	}
}

// SetCallbacks sets the surface event callbacks. Call before the first surface
// is created.
func (s *Surfaces) SetCallbacks(cb Callbacks) {
	s.cb = cb
}

// CreateSurface creates and presents a new toast window.
func (s *Surfaces) CreateSurface(id, contentRef string, width, height int) error {
	return onMainThread(func() error {
		if _, exists := s.windows[id]; exists {
			return &DisplayError{Message: "surface " + id + " already exists"}
		}
		sf := s.newSurface(id, contentRef, width, height)
		s.windows[id] = sf
		sf.window.Present()
		s.logger.Debug("created surface", "surface_id", id, "content", contentRef)
		return nil
	})
}

func (s *Surfaces) newSurface(id, contentRef string, width, height int) *surface {
	sf := &surface{id: id, width: width}

	sf.window = gtk.NewWindow()
	sf.window.SetApplication(s.app)
	sf.window.SetDecorated(false)
	sf.window.SetResizable(false)
	sf.window.SetDefaultSize(width, height)
	sf.window.SetSizeRequest(width, height)

	layershell.InitForWindow(sf.window)
	layershell.SetLayer(sf.window, layershell.LayerShellLayerTop)
	layershell.SetExclusiveZone(sf.window, 0) // Don't reserve space
	layershell.SetKeyboardMode(sf.window, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(sf.window, Namespace)

	// Positions are absolute from the top-left corner of the monitor.
	layershell.SetAnchor(sf.window, layershell.LayerShellEdgeTop, true)
	layershell.SetAnchor(sf.window, layershell.LayerShellEdgeLeft, true)
	if s.monitors != nil {
		if mon := s.monitors.current(); mon != nil {
			layershell.SetMonitor(sf.window, mon)
		}
	}

	sf.buildUI(contentRef)
	s.connectSignals(sf)
	return sf
}

// buildUI constructs the toast widget hierarchy.
func (sf *surface) buildUI(contentRef string) {
	sf.box = gtk.NewBox(gtk.OrientationVertical, 6)
	sf.box.AddCSSClass("toast")
	if class := sanitizeClassName(contentRef); class != "" {
		sf.box.AddCSSClass("content-" + class)
	}
	sf.box.SetMarginTop(8)
	sf.box.SetMarginBottom(8)
	sf.box.SetMarginStart(12)
	sf.box.SetMarginEnd(12)

	header := gtk.NewBox(gtk.OrientationHorizontal, 8)
	header.AddCSSClass("toast-header")

	sf.titleLbl = gtk.NewLabel("")
	sf.titleLbl.AddCSSClass("toast-title")
	sf.titleLbl.SetXAlign(0)
	sf.titleLbl.SetEllipsize(3) // PANGO_ELLIPSIZE_END
	sf.titleLbl.SetMaxWidthChars(40)
	sf.titleLbl.SetHExpand(true)
	header.Append(sf.titleLbl)

	sf.closeBtn = gtk.NewButtonFromIconName("window-close-symbolic")
	sf.closeBtn.AddCSSClass("toast-close")
	sf.closeBtn.SetVisible(false) // Shown on hover
	header.Append(sf.closeBtn)

	sf.box.Append(header)

	sf.bodyLbl = gtk.NewLabel("")
	sf.bodyLbl.AddCSSClass("toast-body")
	sf.bodyLbl.SetXAlign(0)
	sf.bodyLbl.SetWrap(true)
	sf.bodyLbl.SetWrapMode(2) // PANGO_WRAP_WORD_CHAR
	sf.bodyLbl.SetMaxWidthChars(50)
	sf.bodyLbl.SetVisible(false)
	sf.box.Append(sf.bodyLbl)

	sf.window.SetChild(sf.box)
}

// connectSignals sets up event handlers.
func (s *Surfaces) connectSignals(sf *surface) {
	id := sf.id

	sf.window.ConnectMap(func() {
		if sf.ready {
			return
		}
		sf.ready = true
		s.emit(s.cb.Ready, id)
	})

	sf.closeBtn.ConnectClicked(func() {
		s.emit(s.cb.Dismissed, id)
	})

	// The engine decides whether a dismissed surface is hidden or destroyed.
	sf.window.ConnectCloseRequest(func() bool {
		if sf.closing {
			return false
		}
		s.emit(s.cb.Dismissed, id)
		return true
	})

	sf.window.ConnectDestroy(func() {
		if sf.closing {
			return
		}
		delete(s.windows, id)
		s.logger.Debug("surface destroyed externally", "surface_id", id)
		s.emit(s.cb.Destroyed, id)
	})

	motionCtrl := gtk.NewEventControllerMotion()
	motionCtrl.ConnectEnter(func(x, y float64) {
		sf.closeBtn.SetVisible(true)
	})
	motionCtrl.ConnectLeave(func() {
		sf.closeBtn.SetVisible(false)
	})
	sf.window.AddController(motionCtrl)

	clickCtrl := gtk.NewGestureClick()
	clickCtrl.SetButton(1)
	clickCtrl.ConnectReleased(func(nPress int, x, y float64) {
		s.emit(s.cb.Dismissed, id)
	})
	sf.window.AddController(clickCtrl)
}

func (s *Surfaces) emit(fn func(string), id string) {
	if fn != nil {
		go fn(id)
	}
}

// lookup must be called on the main loop.
func (s *Surfaces) lookup(id string) (*surface, error) {
	sf, ok := s.windows[id]
	if !ok {
		return nil, &DisplayError{Message: "surface " + id + " not found"}
	}
	return sf, nil
}

// with runs fn against surface id on the main loop.
func (s *Surfaces) with(id string, fn func(sf *surface)) error {
	return onMainThread(func() error {
		sf, err := s.lookup(id)
		if err != nil {
			return err
		}
		fn(sf)
		return nil
	})
}

// Show maps a hidden surface.
func (s *Surfaces) Show(id string) error {
	return s.with(id, func(sf *surface) {
		sf.window.SetVisible(true)
	})
}

// Hide unmaps a surface without destroying it.
func (s *Surfaces) Hide(id string) error {
	return s.with(id, func(sf *surface) {
		sf.window.SetVisible(false)
	})
}

// Focus raises a surface.
func (s *Surfaces) Focus(id string) error {
	return s.with(id, func(sf *surface) {
		sf.window.Present()
	})
}

// Close destroys a surface.
func (s *Surfaces) Close(id string) error {
	return s.with(id, func(sf *surface) {
		sf.closing = true
		delete(s.windows, id)
		sf.window.Destroy()
	})
}

// SetPosition moves a surface to (x, y) from the top-left of the monitor.
func (s *Surfaces) SetPosition(id string, x, y int) error {
	return s.with(id, func(sf *surface) {
		layershell.SetMargin(sf.window, layershell.LayerShellEdgeTop, y)
		layershell.SetMargin(sf.window, layershell.LayerShellEdgeLeft, x)
	})
}

// MeasuredSize reports the allocated size, or the natural size when the
// surface has not been allocated yet.
func (s *Surfaces) MeasuredSize(id string) (int, int, error) {
	var width, height int
	err := s.with(id, func(sf *surface) {
		width, height = sf.window.Width(), sf.window.Height()
		if height <= 0 {
			_, height, _, _ = sf.window.Measure(gtk.OrientationVertical, sf.width)
		}
		if width <= 0 {
			width = sf.width
		}
	})
	return width, height, err
}

// SendPayload renders a notification into a surface.
func (s *Surfaces) SendPayload(id string, n model.Notification) error {
	return s.with(id, func(sf *surface) {
		sf.titleLbl.SetText(n.Title)
		sf.bodyLbl.SetText(n.Body)
		sf.bodyLbl.SetVisible(n.Body != "")

		if sf.typeClass != "" {
			sf.box.RemoveCSSClass(sf.typeClass)
		}
		sf.typeClass = ""
		if class := sanitizeClassName(n.Type); class != "" {
			sf.typeClass = "type-" + class
			sf.box.AddCSSClass(sf.typeClass)
		}
	})
}

// sanitizeClassName converts a string to a valid CSS class name.
// Replaces spaces and special characters with hyphens, lowercases.
func sanitizeClassName(name string) string {
	var result strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			result.WriteRune(r)
			prevHyphen = false
		case r == '-' || r == '_' || r == ' ' || r == '.' || r == '/':
			if !prevHyphen && result.Len() > 0 {
				result.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.TrimSuffix(result.String(), "-")
}
