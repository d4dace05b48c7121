package engine

import (
	"errors"

	"github.com/jmylchreest/toastd/internal/model"
)

// actionKind is a provider side effect planned under the lock.
type actionKind int

const (
	actCreate  actionKind = iota // CreateSurface, measure, register
	actReuse                     // SetPosition, Show, Focus an idle surface
	actHide                      // Hide into the idle pool
	actDestroy                   // Close and free the slot
	actMove                      // SetPosition
	actDeliver                   // SendPayload, then stamp the display time
)

func (k actionKind) String() string {
	switch k {
	case actCreate:
		return "create"
	case actReuse:
		return "reuse"
	case actHide:
		return "hide"
	case actDestroy:
		return "destroy"
	case actMove:
		return "move"
	case actDeliver:
		return "deliver"
	default:
		return "unknown"
	}
}

type action struct {
	kind         actionKind
	surfaceID    string
	x, y         int
	notification model.Notification // actDeliver only
}

// batch collects the actions and callback events produced by one operation.
// It is owned by the calling goroutine and never shared.
type batch struct {
	actions   []action
	delivered []Delivery
	retired   []Retirement
}

func (b *batch) add(a action) {
	b.actions = append(b.actions, a)
}

func (b *batch) addMoves(moves []move) {
	for _, mv := range moves {
		b.add(action{kind: actMove, surfaceID: mv.surfaceID, x: mv.x, y: mv.y})
	}
}

func (b *batch) retire(n model.Notification, reason RetireReason) {
	b.retired = append(b.retired, Retirement{Notification: n, Reason: reason})
}

// run executes a batch without holding the lock. Each action commits its
// outcome under the lock, which may queue follow-up actions on the same batch.
func (m *Manager) run(b *batch) error {
	var errs []error
	for {
		m.dispatch(b)
		if len(b.actions) == 0 {
			break
		}
		a := b.actions[0]
		b.actions = b.actions[1:]
		if err := m.exec(a, b); err != nil {
			m.logger.Warn("surface action failed",
				"action", a.kind.String(),
				"surface_id", a.surfaceID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dispatch fires callbacks for the events collected so far.
func (m *Manager) dispatch(b *batch) {
	if len(b.retired) == 0 && len(b.delivered) == 0 {
		return
	}
	m.mu.Lock()
	onRetired, onDelivered := m.onRetired, m.onDelivered
	m.mu.Unlock()

	retired, delivered := b.retired, b.delivered
	b.retired, b.delivered = nil, nil

	for _, r := range retired {
		m.logger.Debug("notification retired", "id", r.Notification.ID, "reason", r.Reason.String())
		if onRetired != nil {
			onRetired(r)
		}
	}
	for _, d := range delivered {
		if onDelivered != nil {
			onDelivered(d)
		}
	}
}

func (m *Manager) exec(a action, b *batch) error {
	switch a.kind {
	case actCreate:
		return m.execCreate(a, b)
	case actReuse:
		return m.execReuse(a, b)
	case actHide:
		return m.execHide(a, b)
	case actDestroy:
		return m.execDestroy(a, b)
	case actMove:
		if err := m.surfaces.SetPosition(a.surfaceID, a.x, a.y); err != nil {
			return unavailable("move", err, "surface %s", a.surfaceID)
		}
		return nil
	case actDeliver:
		return m.execDeliver(a, b)
	default:
		return nil
	}
}

func (m *Manager) execCreate(a action, b *batch) error {
	if err := m.surfaces.CreateSurface(a.surfaceID, m.cfg.ContentRef, m.cfg.Width, m.cfg.Height); err != nil {
		m.mu.Lock()
		m.pool.release(a.surfaceID)
		m.mu.Unlock()
		return unavailable("create", err, "surface %s", a.surfaceID)
	}

	height := m.cfg.Height
	if _, h, err := m.surfaces.MeasuredSize(a.surfaceID); err != nil {
		m.logger.Debug("failed to measure surface, using nominal height", "surface_id", a.surfaceID, "error", err)
	} else if h > 0 {
		height = h
	}

	m.mu.Lock()
	s, ok := m.pool.get(a.surfaceID)
	if !ok || s.state != slotReserved {
		m.mu.Unlock()
		// The reservation was dropped while the provider was creating it.
		m.logger.Debug("closing orphaned surface", "surface_id", a.surfaceID)
		if err := m.surfaces.Close(a.surfaceID); err != nil {
			m.logger.Debug("failed to close orphaned surface", "surface_id", a.surfaceID, "error", err)
		}
		return nil
	}

	nominal := s.height
	if _, err := m.pool.register(a.surfaceID, s.x, s.y, height); err != nil {
		m.mu.Unlock()
		return err
	}
	if height != nominal {
		b.addMoves(reflow(m.pool.occupying(), m.cfg))
	} else {
		b.add(action{kind: actMove, surfaceID: s.surfaceID, x: s.x, y: s.y})
	}
	m.logger.Debug("surface created",
		"surface_id", s.surfaceID,
		"x", s.x,
		"y", s.y,
		"height", s.height,
		"ready", s.ready,
	)
	// Demand could have been met elsewhere while this surface was being built.
	m.recycleLocked(s, b)
	m.mu.Unlock()
	return nil
}

func (m *Manager) execReuse(a action, b *batch) error {
	if err := m.surfaces.SetPosition(a.surfaceID, a.x, a.y); err != nil {
		m.logger.Debug("failed to position reused surface", "surface_id", a.surfaceID, "error", err)
	}

	if err := m.surfaces.Show(a.surfaceID); err != nil {
		m.mu.Lock()
		if s, ok := m.pool.get(a.surfaceID); ok && s.state == slotActive && s.busy {
			m.queue.unassign(a.surfaceID)
			m.pool.returnIdle(s)
			b.addMoves(reflow(m.pool.occupying(), m.cfg))
		}
		m.mu.Unlock()
		return unavailable("show", err, "surface %s", a.surfaceID)
	}

	if err := m.surfaces.Focus(a.surfaceID); err != nil {
		m.logger.Debug("failed to focus surface", "surface_id", a.surfaceID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pool.get(a.surfaceID)
	if !ok || s.state != slotActive || !s.busy {
		return nil
	}
	s.busy = false
	if s.x != a.x || s.y != a.y {
		b.add(action{kind: actMove, surfaceID: s.surfaceID, x: s.x, y: s.y})
	}
	m.logger.Debug("surface reused", "surface_id", s.surfaceID, "x", s.x, "y", s.y)
	m.recycleLocked(s, b)
	return nil
}

func (m *Manager) execHide(a action, b *batch) error {
	err := m.surfaces.Hide(a.surfaceID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pool.get(a.surfaceID)
	if !ok || s.state != slotIdle || !s.busy {
		if err != nil {
			return unavailable("hide", err, "surface %s", a.surfaceID)
		}
		return nil
	}
	if err != nil {
		m.pool.abortTransition(s)
		m.fillLocked(s, b)
		return unavailable("hide", err, "surface %s", a.surfaceID)
	}

	m.pool.finishHide(s)
	m.logger.Debug("surface pooled", "surface_id", s.surfaceID, "idle", m.pool.count(slotIdle))
	b.addMoves(reflow(m.pool.occupying(), m.cfg))
	m.processLocked(m.display, b)
	return nil
}

func (m *Manager) execDestroy(a action, b *batch) error {
	err := m.surfaces.Close(a.surfaceID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pool.get(a.surfaceID)
	if !ok || s.state != slotClosing {
		if err != nil {
			return unavailable("destroy", err, "surface %s", a.surfaceID)
		}
		return nil
	}
	if err != nil {
		m.pool.abortTransition(s)
		m.fillLocked(s, b)
		return unavailable("destroy", err, "surface %s", a.surfaceID)
	}

	m.pool.release(a.surfaceID)
	m.logger.Debug("surface destroyed", "surface_id", a.surfaceID)
	b.addMoves(reflow(m.pool.occupying(), m.cfg))
	m.processLocked(m.display, b)
	return nil
}

func (m *Manager) execDeliver(a action, b *batch) error {
	if err := m.surfaces.SendPayload(a.surfaceID, a.notification); err != nil {
		return unavailable("deliver", err, "notification %s to surface %s", a.notification.ID, a.surfaceID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.queue.assignment(a.surfaceID)
	if !ok {
		// Retired and pooled while the payload was in flight. The next
		// assignment sends its own payload.
		return nil
	}
	if n.ID != a.notification.ID {
		// Reassigned while the payload was in flight. The stale payload may
		// have landed after the current one, so send the current one again.
		if s, ok := m.pool.get(a.surfaceID); ok {
			m.deliverLocked(s, b)
		}
		return nil
	}
	first, err := m.queue.setDisplayedTimestamp(n.ID, m.now())
	if err != nil {
		return err
	}
	b.delivered = append(b.delivered, Delivery{SurfaceID: a.surfaceID, Notification: *n, First: first})
	return nil
}
