package daemon

import (
	"log/slog"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/toastd/internal/dbus"
)

// NotificationLevel indicates the severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// Type tags of internal notifications, used for styling and sounds.
const (
	TypeInternalInfo    = "toastd-info"
	TypeInternalWarning = "toastd-warning"
	TypeInternalError   = "toastd-error"
)

// IsInternalType reports whether a type tag belongs to an internal notification.
func IsInternalType(notificationType string) bool {
	switch notificationType {
	case TypeInternalInfo, TypeInternalWarning, TypeInternalError:
		return true
	}
	return false
}

// InternalNotifier shows toasts about toastd's own events.
// The same key is not shown again within the minimum interval.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifyHandler func(notification *dbus.DBusNotification) (uint32, error)

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function that creates the notification. This is
// normally the D-Bus server's internal notify path so the toast gets an id.
func (n *InternalNotifier) SetNotifyHandler(handler func(notification *dbus.DBusNotification) (uint32, error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications with the same key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends an internal notification unless it is rate limited.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	handler := n.notifyHandler
	if handler == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return
	}
	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now
	n.mu.Unlock()

	urgency := byte(dbus.UrgencyNormal)
	notificationType := TypeInternalWarning
	switch level {
	case NotificationLevelInfo:
		urgency = dbus.UrgencyLow
		notificationType = TypeInternalInfo
	case NotificationLevelError:
		urgency = dbus.UrgencyCritical
		notificationType = TypeInternalError
	}

	notification := &dbus.DBusNotification{
		AppName: "toastd",
		Summary: summary,
		Body:    body,
		Hints: map[string]godbus.Variant{
			"urgency":       godbus.MakeVariant(urgency),
			"category":      godbus.MakeVariant("device"),
			"transient":     godbus.MakeVariant(true),
			"desktop-entry": godbus.MakeVariant("toastd"),
			dbus.TypeHint:   godbus.MakeVariant(notificationType),
		},
		ExpireTimeout: 5000,
	}

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "level", level)
	if _, err := handler(notification); err != nil {
		n.logger.Warn("internal notification failed", "key", key, "error", err)
	}
}

// NotifyConfigReloaded reports a successful configuration reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"toastd configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError reports a configuration file that failed to load.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyRestartRequired reports settings that only apply after a restart.
func (n *InternalNotifier) NotifyRestartRequired() {
	n.Notify(
		"config-restart",
		"Restart Required",
		"Display, pool and history settings take effect after toastd restarts.",
		NotificationLevelWarning,
	)
}

// NotifyAudioError reports a sound that could not be played.
func (n *InternalNotifier) NotifyAudioError(err error) {
	n.Notify(
		"audio-error",
		"Sound Error",
		"Failed to play notification sound: "+err.Error(),
		NotificationLevelWarning,
	)
}
