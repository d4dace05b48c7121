package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// Client calls the toastd control interface over the session bus.
type Client struct {
	obj dbus.BusObject
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClientWithConn(conn), nil
}

// NewClientWithConn creates a client on an existing connection.
func NewClientWithConn(conn *dbus.Conn) *Client {
	return &Client{obj: conn.Object(ControlBusName, ControlPath)}
}

func (c *Client) call(method string, ret any, args ...any) error {
	call := c.obj.Call(ControlInterface+"."+method, 0, args...)
	if call.Err != nil {
		return fromDBusError(call.Err)
	}
	if ret == nil {
		return nil
	}
	return call.Store(ret)
}

func (c *Client) callJSON(method string, v any) error {
	var raw string
	if err := c.call(method, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", method, err)
	}
	return nil
}

// Create queues a notification and returns its id.
func (c *Client) Create(req engine.CreateRequest) (string, error) {
	var id string
	err := c.call("Create", &id, req.Title, req.Body, int32(req.Duration/time.Millisecond), req.Type)
	return id, err
}

// Assign binds a notification to a surface.
func (c *Client) Assign(surfaceID, notificationID string) error {
	return c.call("Assign", nil, surfaceID, notificationID)
}

// SurfaceReady reports a surface's content as loaded.
func (c *Client) SurfaceReady(surfaceID string) error {
	return c.call("SurfaceReady", nil, surfaceID)
}

// Close dismisses the notification on a surface.
func (c *Client) Close(surfaceID string) error {
	return c.call("Close", nil, surfaceID)
}

// CloseNotification retires a notification by id.
func (c *Client) CloseNotification(notificationID string) error {
	return c.call("CloseNotification", nil, notificationID)
}

// History returns the retired notifications, oldest first.
func (c *Client) History() ([]model.Notification, error) {
	var out []model.Notification
	err := c.callJSON("History", &out)
	return out, err
}

// Pending returns the pending notifications, oldest first.
func (c *Client) Pending() ([]model.Notification, error) {
	var out []model.Notification
	err := c.callJSON("Pending", &out)
	return out, err
}

// PoolStatus returns the surface pool summary.
func (c *Client) PoolStatus() (engine.PoolStatus, error) {
	var out engine.PoolStatus
	err := c.callJSON("PoolStatus", &out)
	return out, err
}

// Status returns the engine summary.
func (c *Client) Status() (engine.Status, error) {
	var out engine.Status
	err := c.callJSON("Status", &out)
	return out, err
}

// fromDBusError turns a named toastd D-Bus error back into an engine error so
// callers can use errors.Is with the engine sentinels.
func fromDBusError(err error) error {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		var ptr *dbus.Error
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		dbusErr = *ptr
	}

	suffix, ok := strings.CutPrefix(dbusErr.Name, ErrorPrefix)
	if !ok {
		return err
	}
	for kind, name := range errorNames {
		if name == suffix {
			msg := suffix
			if len(dbusErr.Body) > 0 {
				if s, ok := dbusErr.Body[0].(string); ok {
					msg = s
				}
			}
			return &engine.Error{Kind: kind, Message: msg}
		}
	}
	return err
}
