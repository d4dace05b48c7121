package dbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

const (
	// ControlInterface is the toastd control interface name.
	ControlInterface = "io.github.jmylchreest.toastd.Control"
	// ControlPath is the control object path.
	ControlPath = "/io/github/jmylchreest/toastd"
	// ControlBusName is the bus name toastctl talks to.
	ControlBusName = "io.github.jmylchreest.toastd"
	// ErrorPrefix prefixes the D-Bus error names of engine error kinds.
	ErrorPrefix = "io.github.jmylchreest.toastd.Error."
)

// errorNames maps engine error kinds to D-Bus error name suffixes.
var errorNames = map[engine.Kind]string{
	engine.KindNotFound:         "NotFound",
	engine.KindUnavailable:      "Unavailable",
	engine.KindCapacityExceeded: "CapacityExceeded",
	engine.KindStateConflict:    "StateConflict",
}

// Engine is the set of engine operations the control interface exposes.
type Engine interface {
	Create(req engine.CreateRequest) (string, error)
	Assign(surfaceID, notificationID string) error
	SurfaceReady(surfaceID string) error
	Close(surfaceID string) error
	CloseNotification(notificationID string) error
	History() []model.Notification
	Pending() []model.Notification
	PoolStatus() engine.PoolStatus
	Status() engine.Status
}

// Control implements the io.github.jmylchreest.toastd.Control interface.
type Control struct {
	engine Engine
	logger *slog.Logger
}

// NewControl creates the control interface for e.
func NewControl(e Engine, logger *slog.Logger) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{engine: e, logger: logger}
}

func (c *Control) export(conn *dbus.Conn) error {
	if err := conn.Export(c, ControlPath, ControlInterface); err != nil {
		return fmt.Errorf("failed to export control object: %w", err)
	}

	node := &introspect.Node{
		Name: ControlPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ControlInterface,
				Methods: controlMethods(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ControlPath, introspectableInterface); err != nil {
		return fmt.Errorf("failed to export control introspectable: %w", err)
	}

	reply, err := conn.RequestName(ControlBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", ControlBusName)
	}

	c.logger.Info("D-Bus control interface started", "interface", ControlInterface, "path", ControlPath)
	return nil
}

func (c *Control) unexport(conn *dbus.Conn) {
	if _, err := conn.ReleaseName(ControlBusName); err != nil {
		c.logger.Warn("failed to release bus name", "name", ControlBusName, "error", err)
	}
	_ = conn.Export(nil, ControlPath, ControlInterface)
	_ = conn.Export(nil, ControlPath, introspectableInterface)
}

// Create queues a notification. durationMs of zero uses the daemon default and
// a negative value never auto-dismisses.
// D-Bus method: Create(ssis) -> s
//
// A notification that was queued but could not be placed yet still returns
// its id without an error.
func (c *Control) Create(title, body string, durationMs int32, notificationType string) (string, *dbus.Error) {
	id, err := c.engine.Create(engine.CreateRequest{
		Title:    title,
		Body:     body,
		Duration: time.Duration(durationMs) * time.Millisecond,
		Type:     notificationType,
	})
	if err != nil {
		if id != "" {
			c.logger.Warn("notification queued without a surface", "id", id, "error", err)
			return id, nil
		}
		return "", toDBusError(err)
	}
	return id, nil
}

// Assign binds a queued notification to a surface.
// D-Bus method: Assign(ss) -> nothing
func (c *Control) Assign(surfaceID, notificationID string) *dbus.Error {
	return toDBusError(c.engine.Assign(surfaceID, notificationID))
}

// SurfaceReady reports that a surface's content has loaded.
// D-Bus method: SurfaceReady(s) -> nothing
func (c *Control) SurfaceReady(surfaceID string) *dbus.Error {
	return toDBusError(c.engine.SurfaceReady(surfaceID))
}

// Close dismisses the notification on a surface.
// D-Bus method: Close(s) -> nothing
func (c *Control) Close(surfaceID string) *dbus.Error {
	return toDBusError(c.engine.Close(surfaceID))
}

// CloseNotification retires a notification by id.
// D-Bus method: CloseNotification(s) -> nothing
func (c *Control) CloseNotification(notificationID string) *dbus.Error {
	return toDBusError(c.engine.CloseNotification(notificationID))
}

// History returns the retired notifications as JSON, oldest first.
// D-Bus method: History() -> s
func (c *Control) History() (string, *dbus.Error) {
	return encodeJSON(c.engine.History())
}

// Pending returns the pending notifications as JSON, oldest first.
// D-Bus method: Pending() -> s
func (c *Control) Pending() (string, *dbus.Error) {
	return encodeJSON(c.engine.Pending())
}

// PoolStatus returns the surface pool summary as JSON.
// D-Bus method: PoolStatus() -> s
func (c *Control) PoolStatus() (string, *dbus.Error) {
	return encodeJSON(c.engine.PoolStatus())
}

// Status returns the engine summary as JSON.
// D-Bus method: Status() -> s
func (c *Control) Status() (string, *dbus.Error) {
	return encodeJSON(c.engine.Status())
}

func encodeJSON(v any) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// toDBusError converts an engine error into a named D-Bus error.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name, ok := errorNames[engine.KindOf(err)]
	if !ok {
		return dbus.MakeFailedError(err)
	}
	return dbus.NewError(ErrorPrefix+name, []interface{}{err.Error()})
}

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{Name: "Create", Args: []introspect.Arg{
			inArg("title", "s"), inArg("body", "s"), inArg("duration_ms", "i"), inArg("type", "s"), outArg("id", "s"),
		}},
		{Name: "Assign", Args: []introspect.Arg{inArg("surface_id", "s"), inArg("notification_id", "s")}},
		{Name: "SurfaceReady", Args: []introspect.Arg{inArg("surface_id", "s")}},
		{Name: "Close", Args: []introspect.Arg{inArg("surface_id", "s")}},
		{Name: "CloseNotification", Args: []introspect.Arg{inArg("notification_id", "s")}},
		{Name: "History", Args: []introspect.Arg{outArg("json", "s")}},
		{Name: "Pending", Args: []introspect.Arg{outArg("json", "s")}},
		{Name: "PoolStatus", Args: []introspect.Arg{outArg("json", "s")}},
		{Name: "Status", Args: []introspect.Arg{outArg("json", "s")}},
	}
}
