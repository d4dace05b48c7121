package dbus

import (
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/toastd/internal/engine"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by freedesktop.org.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// CloseReasonFor maps an engine retire reason to the reason reported in
// NotificationClosed.
func CloseReasonFor(reason engine.RetireReason) CloseReason {
	switch reason {
	case engine.ReasonExpired, engine.ReasonPurged:
		return CloseReasonExpired
	case engine.ReasonDismissed:
		return CloseReasonDismissed
	case engine.ReasonClosed:
		return CloseReasonClosed
	default:
		return CloseReasonUndefined
	}
}

// Urgency levels from the urgency hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// TypeHint is the hint that carries the toast type tag.
const TypeHint = "x-toastd-type"

// DBusNotification represents an incoming D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type DBusNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

func (n *DBusNotification) stringHint(key string) string {
	if v, ok := n.Hints[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func (n *DBusNotification) boolHint(key string) bool {
	if v, ok := n.Hints[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Urgency extracts the urgency hint from the notification.
// Returns UrgencyNormal if not specified.
func (n *DBusNotification) Urgency() int {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return int(b)
		}
	}
	return UrgencyNormal
}

// Category extracts the category hint from the notification.
func (n *DBusNotification) Category() string {
	return n.stringHint("category")
}

// SoundFile extracts the sound-file hint.
func (n *DBusNotification) SoundFile() string {
	return n.stringHint("sound-file")
}

// SuppressSound returns true if the suppress-sound hint is set.
func (n *DBusNotification) SuppressSound() bool {
	return n.boolHint("suppress-sound")
}

// Transient returns true if the transient hint is set.
func (n *DBusNotification) Transient() bool {
	return n.boolHint("transient")
}

// Type returns the toast type tag: the x-toastd-type hint, else the category.
// Empty means the daemon default.
func (n *DBusNotification) Type() string {
	if t := n.stringHint(TypeHint); t != "" {
		return t
	}
	return n.Category()
}

// Duration maps expire_timeout onto an engine duration. -1 (server default)
// becomes zero, and 0 (never expire) becomes negative. Critical
// notifications without an explicit timeout never expire.
func (n *DBusNotification) Duration() time.Duration {
	switch {
	case n.ExpireTimeout == 0:
		return -1
	case n.ExpireTimeout < 0:
		if n.Urgency() == UrgencyCritical {
			return -1
		}
		return 0
	default:
		return time.Duration(n.ExpireTimeout) * time.Millisecond
	}
}

// Request converts the call into an engine create request.
func (n *DBusNotification) Request() engine.CreateRequest {
	title := n.Summary
	if title == "" {
		title = n.AppName
	}
	return engine.CreateRequest{
		Title:    title,
		Body:     n.Body,
		Duration: n.Duration(),
		Type:     n.Type(),
	}
}

// ServerCapabilities lists the capabilities advertised by toastd.
var ServerCapabilities = []string{
	"body",  // Support body text
	"sound", // Play sounds
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string // "toastd"
	Vendor      string // "toastd"
	Version     string // Build version
	SpecVersion string // "1.2"
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "toastd",
		Vendor:      "toastd",
		Version:     "0.0.1", // Will be replaced by build-time version
		SpecVersion: "1.2",
	}
}
