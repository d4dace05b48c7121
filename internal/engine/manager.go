// Package engine orchestrates toast notifications: it queues them, assigns them
// to display surfaces, recycles surfaces through a bounded pool, stacks them on
// screen and retires old records into a bounded history.
//
// All state sits behind one mutex. Operations plan provider side effects while
// holding it and execute them after releasing it, so providers may call back
// into the Manager from any method.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/toastd/internal/model"
)

// SurfacePrefix prefixes every surface id the engine generates.
const SurfacePrefix = "toast-surface-"

// RetireReason says why a notification left the pending queue.
type RetireReason int

const (
	ReasonDismissed RetireReason = iota + 1 // Surface closed by the user
	ReasonExpired                           // Display duration elapsed
	ReasonClosed                            // Closed by id through an API
	ReasonDestroyed                         // Surface disappeared underneath it
	ReasonPurged                            // Aged out by the retention pass
)

func (r RetireReason) String() string {
	switch r {
	case ReasonDismissed:
		return "dismissed"
	case ReasonExpired:
		return "expired"
	case ReasonClosed:
		return "closed"
	case ReasonDestroyed:
		return "destroyed"
	case ReasonPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// Delivery reports a payload successfully pushed to a surface.
type Delivery struct {
	SurfaceID    string
	Notification model.Notification
	First        bool // The notification's display timestamp was set by this delivery
}

// Retirement reports a notification leaving the pending queue.
type Retirement struct {
	Notification model.Notification
	Reason       RetireReason
}

// DeliveredCallback is called after every successful delivery.
type DeliveredCallback func(Delivery)

// RetiredCallback is called when a notification is retired or purged.
type RetiredCallback func(Retirement)

// CreateRequest describes a new notification.
type CreateRequest struct {
	// ID is a caller generated ULID. Empty means the engine generates one.
	ID    string
	Title string
	Body  string
	// Duration is how long the toast stays up. Zero uses the configured
	// default; negative means it never auto-dismisses.
	Duration time.Duration
	Type     string
}

// PoolStatus summarises the surface pool.
type PoolStatus struct {
	PooledCount   int      `json:"pooled_count" yaml:"pooled_count"`
	TotalCount    int      `json:"total_count" yaml:"total_count"`
	ReservedCount int      `json:"reserved_count" yaml:"reserved_count"`
	MaxWindows    int      `json:"max_windows" yaml:"max_windows"`
	PooledIDs     []string `json:"pooled_ids" yaml:"pooled_ids"`
}

// Status summarises the engine state.
type Status struct {
	Queued    int `json:"queued" yaml:"queued"`       // Pending and not assigned to a surface
	Assigned  int `json:"assigned" yaml:"assigned"`   // Pending and bound to a surface
	Displayed int `json:"displayed" yaml:"displayed"` // Pending and delivered at least once
	Active    int `json:"active" yaml:"active"`
	Idle      int `json:"idle" yaml:"idle"`
	Reserved  int `json:"reserved" yaml:"reserved"`
	History   int `json:"history" yaml:"history"`
}

// Manager is the notification orchestrator.
type Manager struct {
	cfg      Config
	surfaces SurfaceProvider
	monitors MonitorProvider
	logger   *slog.Logger

	mu           sync.Mutex
	pool         *windowPool
	queue        *queue
	display      *Display // Last primary display the monitor provider reported
	lastCleanup  time.Time
	now          func() time.Time
	newSurfaceID func() string

	onDelivered DeliveredCallback
	onRetired   RetiredCallback
}

// NewManager creates a Manager. The monitor provider may be nil, in which case
// no surface is ever placed until one is available.
func NewManager(cfg Config, surfaces SurfaceProvider, monitors MonitorProvider, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if surfaces == nil {
		return nil, errors.New("surface provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:          cfg,
		surfaces:     surfaces,
		monitors:     monitors,
		logger:       logger,
		pool:         newWindowPool(cfg.MaxWindows),
		queue:        newQueue(),
		lastCleanup:  time.Now(),
		now:          time.Now,
		newSurfaceID: func() string { return SurfacePrefix + uuid.NewString() },
	}, nil
}

// SetClock replaces the time source and restarts the cleanup interval from it.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.lastCleanup = now()
}

// SetDeliveredCallback sets the callback for successful deliveries.
func (m *Manager) SetDeliveredCallback(cb DeliveredCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDelivered = cb
}

// SetRetiredCallback sets the callback for retired notifications.
func (m *Manager) SetRetiredCallback(cb RetiredCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRetired = cb
}

// Config returns the engine configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Create queues a new notification and tries to place it. The id is returned
// even with an Unavailable error: the notification stays queued and is placed
// on a later trigger.
func (m *Manager) Create(req CreateRequest) (string, error) {
	n, err := model.NewNotification(req.Title, req.Body)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	if req.ID != "" {
		n.ID = req.ID
	}
	if err := n.Validate(); err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	n.Duration = m.durationSeconds(req.Duration)
	n.Type = m.cfg.DefaultType
	if req.Type != "" {
		n.Type = req.Type
	}

	d, derr := m.fetchDisplay()

	b := &batch{}
	m.mu.Lock()
	now := m.now()
	n.CreatedAt = now.Unix()
	freed := m.cleanupLocked(now, b)
	if err := m.queue.enqueue(n); err != nil {
		m.mu.Unlock()
		return "", err
	}
	for _, s := range freed {
		m.recycleLocked(s, b)
	}
	disp, dispErr := m.resolveDisplayLocked(d, derr)
	blocked := m.processLocked(disp, b)
	m.mu.Unlock()

	m.logger.Debug("notification queued", "id", n.ID, "type", n.Type, "duration", n.Duration)

	err = m.run(b)
	if blocked {
		err = errors.Join(unavailable("create", dispErr, "no primary display to place notification %s", n.ID), err)
	}
	return n.ID, err
}

func (m *Manager) durationSeconds(d time.Duration) int {
	switch {
	case d == 0:
		return m.cfg.DefaultDuration
	case d < 0:
		return 0
	default:
		return model.DurationSeconds(d)
	}
}

// Assign binds a pending notification to a surface and delivers it when the
// surface is ready. A notification the surface held before goes back to the
// queue. An idle surface is shown again.
func (m *Manager) Assign(surfaceID, notificationID string) error {
	d, derr := m.fetchDisplay()

	b := &batch{}
	m.mu.Lock()
	s, ok := m.pool.get(surfaceID)
	if !ok {
		m.mu.Unlock()
		return notFound("assign", "surface %s not found", surfaceID)
	}
	if _, ok := m.queue.get(notificationID); !ok {
		err := m.queue.lookupError("assign", notificationID)
		m.mu.Unlock()
		return err
	}
	if s.busy || (s.state != slotActive && s.state != slotIdle) {
		m.mu.Unlock()
		return stateConflict("assign", "surface %s is %s", surfaceID, describe(s))
	}
	if cur, ok := m.queue.surfaceOf(notificationID); ok && cur != surfaceID {
		m.mu.Unlock()
		return stateConflict("assign", "notification %s is already assigned to surface %s", notificationID, cur)
	}

	if s.state == slotIdle {
		disp, err := m.resolveDisplayLocked(d, derr)
		if disp == nil {
			m.mu.Unlock()
			return unavailable("assign", err, "no primary display to show surface %s", surfaceID)
		}
		x, y := nextPosition(m.pool.occupying(), disp.Width, m.cfg)
		m.pool.activate(s)
		s.x, s.y = x, y
		if _, err := m.queue.assign(surfaceID, notificationID); err != nil {
			m.pool.returnIdle(s)
			m.mu.Unlock()
			return err
		}
		b.add(action{kind: actReuse, surfaceID: surfaceID, x: x, y: y})
	} else {
		displaced, err := m.queue.assign(surfaceID, notificationID)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.deliverLocked(s, b)
		if displaced != "" {
			m.logger.Debug("notification displaced", "id", displaced, "surface_id", surfaceID)
			m.processLocked(m.display, b)
		}
	}
	m.mu.Unlock()
	return m.run(b)
}

// SurfaceReady records that a surface's content can take payloads and
// (re)delivers its notification. Calling it repeatedly is safe. A ready that
// arrives while the surface is still being created is applied once it registers.
func (m *Manager) SurfaceReady(surfaceID string) error {
	b := &batch{}
	m.mu.Lock()
	s, ok := m.pool.get(surfaceID)
	if !ok {
		m.mu.Unlock()
		return notFound("surface ready", "surface %s not found", surfaceID)
	}
	s.ready = true
	if s.state == slotActive && !s.busy {
		m.fillLocked(s, b)
	}
	m.mu.Unlock()
	return m.run(b)
}

// Close handles a surface dismissed by the user. Its notification moves to
// history, and the surface takes the next pending notification, goes back to
// the idle pool, or is destroyed when the pool already holds enough spares.
func (m *Manager) Close(surfaceID string) error {
	return m.closeSurface("close", surfaceID, "", ReasonDismissed)
}

// Expire closes a surface whose display duration elapsed. It fails with a
// StateConflict when the surface no longer shows notificationID.
func (m *Manager) Expire(surfaceID, notificationID string) error {
	return m.closeSurface("expire", surfaceID, notificationID, ReasonExpired)
}

func (m *Manager) closeSurface(op, surfaceID, expectID string, reason RetireReason) error {
	b := &batch{}
	m.mu.Lock()
	s, ok := m.pool.get(surfaceID)
	if !ok {
		m.mu.Unlock()
		return notFound(op, "surface %s not found", surfaceID)
	}
	if s.state != slotActive || s.busy {
		m.mu.Unlock()
		return stateConflict(op, "surface %s is %s", surfaceID, describe(s))
	}
	if expectID != "" {
		if n, ok := m.queue.assignment(surfaceID); !ok || n.ID != expectID {
			m.mu.Unlock()
			return stateConflict(op, "surface %s no longer shows notification %s", surfaceID, expectID)
		}
	}

	if n, ok := m.queue.removeForSurface(surfaceID); ok {
		b.retire(n, reason)
	}
	m.recycleLocked(s, b)
	m.mu.Unlock()
	return m.run(b)
}

// CloseNotification retires a notification by id, whether it is on a surface
// or still queued.
func (m *Manager) CloseNotification(notificationID string) error {
	b := &batch{}
	m.mu.Lock()
	if _, ok := m.queue.get(notificationID); !ok {
		err := m.queue.lookupError("close notification", notificationID)
		m.mu.Unlock()
		return err
	}

	sid, onSurface := m.queue.surfaceOf(notificationID)
	if n, ok := m.queue.retire(notificationID); ok {
		b.retire(n, ReasonClosed)
	}
	// A busy surface is recycled when its transition commits.
	if onSurface {
		if s, ok := m.pool.get(sid); ok && s.state == slotActive && !s.busy {
			m.recycleLocked(s, b)
		}
	}
	m.mu.Unlock()
	return m.run(b)
}

// SurfaceDestroyed handles a surface that went away without the engine asking.
// Its notification is retired, its slot freed and the rest restacked.
func (m *Manager) SurfaceDestroyed(surfaceID string) error {
	b := &batch{}
	m.mu.Lock()
	s, ok := m.pool.get(surfaceID)
	if !ok {
		m.mu.Unlock()
		return notFound("surface destroyed", "surface %s not found", surfaceID)
	}
	if n, ok := m.queue.removeForSurface(surfaceID); ok {
		b.retire(n, ReasonDestroyed)
	}
	occupied := s.state == slotActive || s.state == slotReserved
	m.pool.release(surfaceID)
	if occupied {
		b.addMoves(reflow(m.pool.occupying(), m.cfg))
	}
	m.processLocked(m.display, b)
	m.mu.Unlock()

	m.logger.Debug("surface destroyed externally", "surface_id", surfaceID)
	return m.run(b)
}

// Shutdown closes every surface. Notifications on surfaces are retired as closed.
func (m *Manager) Shutdown() error {
	b := &batch{}
	m.mu.Lock()
	var ids []string
	for _, s := range m.pool.inState(slotReserved, slotActive, slotIdle, slotClosing) {
		if n, ok := m.queue.removeForSurface(s.surfaceID); ok {
			b.retire(n, ReasonClosed)
		}
		if s.state != slotReserved {
			ids = append(ids, s.surfaceID)
		}
		m.pool.release(s.surfaceID)
	}
	m.mu.Unlock()

	m.dispatch(b)
	var errs []error
	for _, id := range ids {
		if err := m.surfaces.Close(id); err != nil {
			errs = append(errs, unavailable("shutdown", err, "surface %s", id))
		}
	}
	return errors.Join(errs...)
}

// History returns retired notifications, oldest first.
func (m *Manager) History() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.snapshotHistory()
}

// Pending returns the notifications not yet retired, in enqueue order.
func (m *Manager) Pending() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.snapshotPending()
}

// PoolStatus returns the surface pool summary.
func (m *Manager) PoolStatus() PoolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.pool.idleIDs()
	return PoolStatus{
		PooledCount:   len(ids),
		TotalCount:    m.pool.existing(),
		ReservedCount: m.pool.count(slotReserved),
		MaxWindows:    m.pool.capacity(),
		PooledIDs:     ids,
	}
}

// Status returns counts across the queue and the pool.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Queued:   m.queue.unassignedCount(),
		Assigned: len(m.queue.assignments),
		Active:   m.pool.count(slotActive),
		Idle:     m.pool.count(slotIdle),
		Reserved: m.pool.count(slotReserved),
		History:  len(m.queue.history),
	}
	for _, n := range m.queue.pending {
		if n.Displayed() {
			st.Displayed++
		}
	}
	return st
}

// fetchDisplay queries the monitor provider. It runs outside the lock.
func (m *Manager) fetchDisplay() (Display, error) {
	if m.monitors == nil {
		return Display{}, errors.New("no monitor provider")
	}
	return m.monitors.PrimaryDisplay()
}

// resolveDisplayLocked caches a fresh display, or falls back to the last known one.
func (m *Manager) resolveDisplayLocked(d Display, err error) (*Display, error) {
	if err == nil && d.Width <= 0 {
		err = fmt.Errorf("primary display reports width %d", d.Width)
	}
	if err == nil {
		m.display = &d
		return m.display, nil
	}
	if m.display != nil {
		m.logger.Debug("primary display query failed, using last known", "error", err)
		return m.display, nil
	}
	return nil, err
}

// processLocked places unassigned notifications until nothing more can move.
// In order it reuses an idle surface, reserves a new one while demand exceeds
// the surfaces already being created, or fills an active surface left without
// a notification. It reports whether placement stalled only for lack of a
// display.
func (m *Manager) processLocked(disp *Display, b *batch) bool {
	for {
		n := m.queue.nextUnassigned()
		if n == nil {
			return false
		}
		switch {
		case disp != nil && m.reuseIdleLocked(n, disp, b):
		case disp != nil && m.reserveLocked(disp, b):
		case m.assignFreeLocked(n, b):
		default:
			canGrow := len(m.pool.idle) > 0 || m.pool.hasCapacity()
			return disp == nil && canGrow
		}
	}
}

func (m *Manager) assignFreeLocked(n *model.Notification, b *batch) bool {
	s, ok := m.pool.findUnassignedActive(m.queue.isAssigned)
	if !ok {
		return false
	}
	if _, err := m.queue.assign(s.surfaceID, n.ID); err != nil {
		return false
	}
	m.deliverLocked(s, b)
	return true
}

func (m *Manager) reuseIdleLocked(n *model.Notification, disp *Display, b *batch) bool {
	x, y := nextPosition(m.pool.occupying(), disp.Width, m.cfg)
	s, ok := m.pool.claimIdle()
	if !ok {
		return false
	}
	s.x, s.y = x, y
	if _, err := m.queue.assign(s.surfaceID, n.ID); err != nil {
		m.pool.returnIdle(s)
		return false
	}
	b.add(action{kind: actReuse, surfaceID: s.surfaceID, x: x, y: y})
	return true
}

func (m *Manager) reserveLocked(disp *Display, b *batch) bool {
	if m.queue.unassignedCount() <= m.pool.count(slotReserved) || !m.pool.hasCapacity() {
		return false
	}
	x, y := nextPosition(m.pool.occupying(), disp.Width, m.cfg)
	id := m.newSurfaceID()
	if _, err := m.pool.reserve(id, x, y, m.cfg.Height); err != nil {
		m.logger.Debug("surface reservation failed", "surface_id", id, "error", err)
		return false
	}
	b.add(action{kind: actCreate, surfaceID: id, x: x, y: y})
	return true
}

// fillLocked delivers the surface's notification, or assigns it the next
// unassigned one. It reports whether the surface now holds a notification.
func (m *Manager) fillLocked(s *slot, b *batch) bool {
	if _, ok := m.queue.assignment(s.surfaceID); !ok {
		n := m.queue.nextUnassigned()
		if n == nil {
			return false
		}
		if _, err := m.queue.assign(s.surfaceID, n.ID); err != nil {
			return false
		}
	}
	m.deliverLocked(s, b)
	return true
}

// recycleLocked gives a settled active surface work, or pools or destroys it.
func (m *Manager) recycleLocked(s *slot, b *batch) {
	if m.fillLocked(s, b) {
		return
	}
	if m.pool.count(slotIdle) < m.cfg.MaxIdle {
		m.pool.beginHide(s)
		b.add(action{kind: actHide, surfaceID: s.surfaceID})
		return
	}
	m.pool.beginClose(s)
	b.add(action{kind: actDestroy, surfaceID: s.surfaceID})
}

func (m *Manager) deliverLocked(s *slot, b *batch) {
	if !s.ready || s.busy || s.state != slotActive {
		return
	}
	n, ok := m.queue.assignment(s.surfaceID)
	if !ok {
		return
	}
	b.add(action{kind: actDeliver, surfaceID: s.surfaceID, notification: *n})
}

// cleanupLocked runs the retention pass when the cleanup interval has elapsed.
// It returns settled surfaces whose notification was purged.
func (m *Manager) cleanupLocked(now time.Time, b *batch) []*slot {
	if now.Sub(m.lastCleanup) < m.cfg.CleanupInterval {
		return nil
	}
	m.lastCleanup = now

	trimmed := m.queue.trimHistory(m.cfg.MaxHistorySize)
	pruned := m.pool.pruneIdle()
	expired := m.queue.purgeExpired(now, m.cfg.RetentionTTL, m.cfg.RetentionPolicy)

	var freed []*slot
	for _, p := range expired {
		b.retire(p.notification, ReasonPurged)
		if p.surfaceID == "" {
			continue
		}
		if s, ok := m.pool.get(p.surfaceID); ok && s.state == slotActive && !s.busy {
			freed = append(freed, s)
		}
	}

	if trimmed > 0 || pruned > 0 || len(expired) > 0 {
		m.logger.Debug("cleanup completed",
			"history_trimmed", trimmed,
			"idle_pruned", pruned,
			"purged", len(expired),
		)
	}
	return freed
}

func describe(s *slot) string {
	if s.busy {
		return s.state.String() + " (busy)"
	}
	return s.state.String()
}
