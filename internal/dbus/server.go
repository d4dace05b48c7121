package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name to claim.
	DBusBusName = "org.freedesktop.Notifications"

	introspectableInterface = "org.freedesktop.DBus.Introspectable"
)

var errNotConnected = errors.New("not connected to D-Bus")

// NotificationHandler receives a notification and the D-Bus id it was given.
// A returned error is sent back to the caller and the id is dropped.
type NotificationHandler func(notification *DBusNotification, id uint32) error

// CloseHandler is called when CloseNotification is requested for an active id.
// The NotificationClosed signal follows once the close is carried out, via
// CloseWithReason.
type CloseHandler func(id uint32)

// NotificationServer implements the org.freedesktop.Notifications D-Bus
// interface and hosts the toastd control object on the same connection.
type NotificationServer struct {
	logger *slog.Logger
	nextID atomic.Uint32

	onNotify NotificationHandler
	onClose  CloseHandler
	control  *Control
	info     ServerInfo

	mu     sync.RWMutex
	conn   *dbus.Conn
	active map[uint32]struct{}
}

// NewNotificationServer creates a server that is not yet on the bus.
func NewNotificationServer(logger *slog.Logger) *NotificationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationServer{
		logger: logger,
		info:   DefaultServerInfo(),
		active: make(map[uint32]struct{}),
	}
}

// SetNotifyHandler sets the handler called for Notify and NotifyInternal.
func (s *NotificationServer) SetNotifyHandler(handler NotificationHandler) {
	s.onNotify = handler
}

// SetCloseHandler sets the handler called when CloseNotification is requested.
func (s *NotificationServer) SetCloseHandler(handler CloseHandler) {
	s.onClose = handler
}

// SetServerInfo sets the server information returned by GetServerInformation.
func (s *NotificationServer) SetServerInfo(info ServerInfo) {
	s.info = info
}

// SetControl attaches the control interface. It must be set before Start.
func (s *NotificationServer) SetControl(c *Control) {
	s.control = c
}

// Start connects to the session bus and serves on it.
func (s *NotificationServer) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return s.Serve(conn)
}

// Serve exports the notification and control objects on conn and claims
// their bus names. Nothing stays exported when it fails.
func (s *NotificationServer) Serve(conn *dbus.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("server already running")
	}
	if err := s.export(conn); err != nil {
		return err
	}
	if s.control != nil {
		if err := s.control.export(conn); err != nil {
			s.unexport(conn)
			return err
		}
	}
	s.conn = conn

	s.logger.Info("D-Bus notification server started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

func (s *NotificationServer) export(conn *dbus.Conn) error {
	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: notificationMethods(),
				Signals: notificationSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath, introspectableInterface); err != nil {
		_ = conn.Export(nil, DBusPath, DBusInterface)
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err == nil && reply != dbus.RequestNameReplyPrimaryOwner {
		err = fmt.Errorf("bus name %s is owned by another notification daemon", DBusBusName)
	}
	if err != nil {
		_ = conn.Export(nil, DBusPath, DBusInterface)
		_ = conn.Export(nil, DBusPath, introspectableInterface)
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	return nil
}

func (s *NotificationServer) unexport(conn *dbus.Conn) {
	if _, err := conn.ReleaseName(DBusBusName); err != nil {
		s.logger.Warn("failed to release bus name", "name", DBusBusName, "error", err)
	}
	_ = conn.Export(nil, DBusPath, DBusInterface)
	_ = conn.Export(nil, DBusPath, introspectableInterface)
}

// Stop releases the bus names and unexports every object. The shared session
// connection itself stays open.
func (s *NotificationServer) Stop() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if s.control != nil {
		s.control.unexport(conn)
	}
	s.unexport(conn)

	s.logger.Info("D-Bus notification server stopped")
	return nil
}

// GetCapabilities returns the list of capabilities supported by this server.
// D-Bus method: GetCapabilities() -> as
func (s *NotificationServer) GetCapabilities() ([]string, *dbus.Error) {
	return ServerCapabilities, nil
}

// GetServerInformation returns information about the notification server.
// D-Bus method: GetServerInformation() -> (ssss)
func (s *NotificationServer) GetServerInformation() (string, string, string, string, *dbus.Error) {
	return s.info.Name, s.info.Vendor, s.info.Version, s.info.SpecVersion, nil
}

// Notify accepts a notification from a client. A non-zero replacesID is
// returned unchanged so the client keeps addressing the same toast.
// D-Bus method: Notify(susssasa{sv}i) -> u
func (s *NotificationServer) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	id := replacesID
	if id == 0 {
		id = s.nextID.Add(1)
	}

	s.logger.Debug("notify", "app_name", appName, "summary", summary, "id", id, "replaces_id", replacesID)

	err := s.dispatch(&DBusNotification{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         hints,
		ExpireTimeout: expireTimeout,
	}, id)
	if err != nil {
		return 0, toDBusError(err)
	}
	return id, nil
}

// NotifyInternal raises a notification from inside the daemon, such as a
// config reload notice, and returns its D-Bus id.
func (s *NotificationServer) NotifyInternal(notification *DBusNotification) (uint32, error) {
	id := s.nextID.Add(1)
	s.logger.Debug("internal notify", "summary", notification.Summary, "id", id)

	if err := s.dispatch(notification, id); err != nil {
		return 0, err
	}
	return id, nil
}

// dispatch marks id active and hands the notification to the handler.
func (s *NotificationServer) dispatch(notification *DBusNotification, id uint32) error {
	s.mu.Lock()
	s.active[id] = struct{}{}
	s.mu.Unlock()

	if s.onNotify == nil {
		return nil
	}
	if err := s.onNotify(notification, id); err != nil {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
		return err
	}
	return nil
}

// CloseNotification asks for an active notification to be closed. Unknown
// ids are ignored.
// D-Bus method: CloseNotification(u) -> nothing
func (s *NotificationServer) CloseNotification(id uint32) *dbus.Error {
	s.logger.Debug("close notification requested", "id", id)

	if s.IsActive(id) && s.onClose != nil {
		s.onClose(id)
	}
	return nil
}

// IsActive reports whether id was handed out and not yet closed.
func (s *NotificationServer) IsActive(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

func notificationMethods() []introspect.Method {
	return []introspect.Method{
		{Name: "GetCapabilities", Args: []introspect.Arg{outArg("capabilities", "as")}},
		{Name: "GetServerInformation", Args: []introspect.Arg{
			outArg("name", "s"), outArg("vendor", "s"), outArg("version", "s"), outArg("spec_version", "s"),
		}},
		{Name: "Notify", Args: []introspect.Arg{
			inArg("app_name", "s"), inArg("replaces_id", "u"), inArg("app_icon", "s"),
			inArg("summary", "s"), inArg("body", "s"), inArg("actions", "as"),
			inArg("hints", "a{sv}"), inArg("expire_timeout", "i"), outArg("id", "u"),
		}},
		{Name: "CloseNotification", Args: []introspect.Arg{inArg("id", "u")}},
	}
}

func notificationSignals() []introspect.Signal {
	return []introspect.Signal{
		{Name: "NotificationClosed", Args: []introspect.Arg{{Name: "id", Type: "u"}, {Name: "reason", Type: "u"}}},
	}
}

func inArg(name, typ string) introspect.Arg {
	return introspect.Arg{Name: name, Type: typ, Direction: "in"}
}

func outArg(name, typ string) introspect.Arg {
	return introspect.Arg{Name: name, Type: typ, Direction: "out"}
}
