package daemon

import "sync"

// IDMap tracks which engine notification backs each D-Bus notification id.
type IDMap struct {
	mu       sync.RWMutex
	toEngine map[uint32]string
	toDBus   map[string]uint32
}

// NewIDMap creates an empty IDMap.
func NewIDMap() *IDMap {
	return &IDMap{
		toEngine: make(map[uint32]string),
		toDBus:   make(map[string]uint32),
	}
}

// Bind associates a D-Bus id with an engine id. The engine id previously bound
// to dbusID, if any, is unbound and returned.
func (m *IDMap) Bind(dbusID uint32, engineID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.toEngine[dbusID]
	if ok {
		delete(m.toDBus, prev)
	}
	m.toEngine[dbusID] = engineID
	m.toDBus[engineID] = dbusID
	return prev, ok
}

// Unbind removes a D-Bus id and returns the engine id it was bound to.
func (m *IDMap) Unbind(dbusID uint32) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	engineID, ok := m.toEngine[dbusID]
	if !ok {
		return "", false
	}
	delete(m.toEngine, dbusID)
	delete(m.toDBus, engineID)
	return engineID, true
}

// Remove removes an engine id and returns the D-Bus id it was bound to.
func (m *IDMap) Remove(engineID string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dbusID, ok := m.toDBus[engineID]
	if !ok {
		return 0, false
	}
	delete(m.toDBus, engineID)
	delete(m.toEngine, dbusID)
	return dbusID, true
}

// EngineID returns the engine id bound to a D-Bus id.
func (m *IDMap) EngineID(dbusID uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.toEngine[dbusID]
	return id, ok
}

// DBusID returns the D-Bus id bound to an engine id.
func (m *IDMap) DBusID(engineID string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.toDBus[engineID]
	return id, ok
}

// Len returns the number of bound ids.
func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.toEngine)
}
