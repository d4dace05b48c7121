package daemon

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/toastd/internal/config"
	"github.com/jmylchreest/toastd/internal/dbus"
	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// Signaller emits NotificationClosed for D-Bus notification ids.
type Signaller interface {
	CloseWithReason(id uint32, reason dbus.CloseReason) error
}

// SoundPlayer plays notification sounds.
type SoundPlayer interface {
	PlayForType(notificationType string) error
	PlayFile(path string) error
}

type soundHint struct {
	file     string
	suppress bool
}

// Service connects the freedesktop notification server, the surfaces and the
// sound player to the engine.
type Service struct {
	engine    *engine.Manager
	ids       *IDMap
	dismisser *Dismisser
	notifier  *InternalNotifier
	signals   Signaller
	player    SoundPlayer
	logger    *slog.Logger

	// notifyMu serializes Notify calls so a replaces_id is closed before
	// its successor is bound.
	notifyMu sync.Mutex

	mu       sync.RWMutex
	defaults config.DefaultsConfig
	hints    map[string]soundHint
}

// NewService creates the service and registers its engine callbacks.
// Signals, player and notifier may be nil.
func NewService(e *engine.Manager, cfg *config.DaemonConfig, signals Signaller, player SoundPlayer, notifier *InternalNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}

	s := &Service{
		engine:    e,
		ids:       NewIDMap(),
		dismisser: NewDismisser(e, logger),
		notifier:  notifier,
		signals:   signals,
		player:    player,
		logger:    logger,
		defaults:  cfg.Defaults,
		hints:     make(map[string]soundHint),
	}
	if notifier != nil {
		notifier.SetEnabled(cfg.Behavior.InternalNotifications)
	}

	e.SetDeliveredCallback(s.onDelivered)
	e.SetRetiredCallback(s.onRetired)
	return s
}

// IDs returns the D-Bus id map.
func (s *Service) IDs() *IDMap {
	return s.ids
}

// HandleNotify handles a freedesktop Notify call. A reused replaces_id closes
// the notification it was bound to before the new one is created; no
// NotificationClosed is emitted for it since the id lives on.
func (s *Service) HandleNotify(n *dbus.DBusNotification, dbusID uint32) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if prev, ok := s.ids.Unbind(dbusID); ok {
		if err := s.engine.CloseNotification(prev); err != nil && !errors.Is(err, engine.ErrNotFound) {
			s.logger.Warn("failed to close replaced notification", "dbus_id", dbusID, "id", prev, "error", err)
		}
	}

	id, err := model.NewID()
	if err != nil {
		return err
	}
	// Bound before Create so a retirement from inside Create still finds
	// the D-Bus id, and the first delivery sees the sound hint.
	s.ids.Bind(dbusID, id)
	if file, suppress := n.SoundFile(), n.SuppressSound(); file != "" || suppress {
		s.mu.Lock()
		s.hints[id] = soundHint{file: file, suppress: suppress}
		s.mu.Unlock()
	}

	req := s.applyDefaults(n.Request())
	req.ID = id
	created, err := s.engine.Create(req)
	if created == "" {
		s.ids.Remove(id)
		s.mu.Lock()
		delete(s.hints, id)
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.logger.Warn("notification queued without a surface", "dbus_id", dbusID, "id", id, "error", err)
	}

	s.logger.Debug("notification created", "dbus_id", dbusID, "id", id, "app", n.AppName, "type", req.Type)
	return nil
}

// HandleClose handles a freedesktop CloseNotification call.
func (s *Service) HandleClose(dbusID uint32) {
	id, ok := s.ids.EngineID(dbusID)
	if !ok {
		return
	}
	if err := s.engine.CloseNotification(id); err != nil {
		s.logger.Debug("close notification failed", "dbus_id", dbusID, "id", id, "error", err)
	}
}

func (s *Service) applyDefaults(req engine.CreateRequest) engine.CreateRequest {
	s.mu.RLock()
	defaults := s.defaults
	s.mu.RUnlock()

	if req.Duration == 0 {
		req.Duration = defaults.Duration.Duration()
		if req.Duration == 0 {
			req.Duration = -1
		}
	}
	if req.Type == "" {
		req.Type = defaults.Type
	}
	return req
}

func (s *Service) onDelivered(d engine.Delivery) {
	if dbusID, ok := s.ids.DBusID(d.Notification.ID); ok {
		s.logger.Debug("notification delivered", "dbus_id", dbusID, "id", d.Notification.ID, "surface", d.SurfaceID, "first", d.First)
	}
	s.dismisser.Schedule(d)
	if d.First && s.player != nil {
		go s.playSound(d.Notification.ID, d.Notification.Type)
	}
}

func (s *Service) playSound(id, notificationType string) {
	s.mu.RLock()
	hint := s.hints[id]
	s.mu.RUnlock()

	var err error
	switch {
	case hint.suppress:
		return
	case hint.file != "":
		err = s.player.PlayFile(hint.file)
	default:
		err = s.player.PlayForType(notificationType)
	}
	if err != nil {
		s.logger.Warn("failed to play sound", "id", id, "type", notificationType, "error", err)
		if s.notifier != nil && !IsInternalType(notificationType) {
			s.notifier.NotifyAudioError(err)
		}
	}
}

func (s *Service) onRetired(r engine.Retirement) {
	id := r.Notification.ID
	s.dismisser.Cancel(id)

	s.mu.Lock()
	delete(s.hints, id)
	s.mu.Unlock()

	dbusID, ok := s.ids.Remove(id)
	if !ok || s.signals == nil {
		return
	}
	reason := dbus.CloseReasonFor(r.Reason)
	if err := s.signals.CloseWithReason(dbusID, reason); err != nil {
		s.logger.Warn("failed to emit NotificationClosed", "dbus_id", dbusID, "reason", reason.String(), "error", err)
	}
}

// SurfaceReady forwards a surface's loaded signal to the engine.
func (s *Service) SurfaceReady(surfaceID string) {
	if err := s.engine.SurfaceReady(surfaceID); err != nil {
		s.logger.Debug("surface ready failed", "surface", surfaceID, "error", err)
	}
}

// SurfaceDismissed closes the toast the user dismissed.
func (s *Service) SurfaceDismissed(surfaceID string) {
	if err := s.engine.Close(surfaceID); err != nil {
		s.logger.Debug("dismiss failed", "surface", surfaceID, "error", err)
	}
}

// SurfaceDestroyed reports a surface that went away on its own.
func (s *Service) SurfaceDestroyed(surfaceID string) {
	if err := s.engine.SurfaceDestroyed(surfaceID); err != nil {
		s.logger.Debug("surface destroyed failed", "surface", surfaceID, "error", err)
	}
}

// ApplyConfig applies a reloaded configuration. Settings baked into the engine
// are reported and left for the next start.
func (s *Service) ApplyConfig(old, updated *config.DaemonConfig) {
	s.mu.Lock()
	s.defaults = updated.Defaults
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.SetEnabled(updated.Behavior.InternalNotifications)
	}
	if old != nil && updated.RequiresRestart(old) {
		s.logger.Warn("config change requires a restart to take effect")
		if s.notifier != nil {
			s.notifier.NotifyRestartRequired()
		}
		return
	}
	if s.notifier != nil {
		s.notifier.NotifyConfigReloaded()
	}
}

// ConfigError reports a configuration file that failed to reload.
func (s *Service) ConfigError(err error) {
	if s.notifier != nil {
		s.notifier.NotifyConfigError(err)
	}
}

// Shutdown stops the timers and closes every surface.
func (s *Service) Shutdown(timeout time.Duration) error {
	s.logger.Debug("service shutting down", "bound_ids", s.ids.Len(), "pending_timers", s.dismisser.Pending())
	s.dismisser.Stop()

	done := make(chan error, 1)
	go func() { done <- s.engine.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errors.New("timed out closing surfaces")
	}
}
