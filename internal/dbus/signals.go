package dbus

import "fmt"

// EmitNotificationClosed emits the NotificationClosed signal.
func (s *NotificationServer) EmitNotificationClosed(id uint32, reason CloseReason) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}

	if err := conn.Emit(DBusPath, DBusInterface+".NotificationClosed", id, uint32(reason)); err != nil {
		return fmt.Errorf("failed to emit NotificationClosed signal: %w", err)
	}
	s.logger.Debug("emitted NotificationClosed", "id", id, "reason", reason.String())
	return nil
}

// CloseWithReason retires an active id and emits the signal. Ids that are not
// active are ignored, so each id is signalled at most once.
func (s *NotificationServer) CloseWithReason(id uint32, reason CloseReason) error {
	s.mu.Lock()
	_, active := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if !active {
		return nil
	}
	return s.EmitNotificationClosed(id, reason)
}
