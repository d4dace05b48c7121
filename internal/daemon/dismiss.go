package daemon

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/toastd/internal/engine"
)

// Expirer expires the notification shown on a surface.
type Expirer interface {
	Expire(surfaceID, notificationID string) error
}

type stopper interface {
	Stop() bool
}

type dismissTimer struct {
	surfaceID string
	timer     stopper
}

// Dismisser arms one auto-dismiss timer per delivered notification.
// A new delivery of the same notification restarts its timer, since the
// surface shows it again from the start.
type Dismisser struct {
	expirer Expirer
	logger  *slog.Logger

	mu        sync.Mutex
	timers    map[string]*dismissTimer
	stopped   bool
	afterFunc func(time.Duration, func()) stopper
}

// NewDismisser creates a Dismisser that expires notifications through e.
func NewDismisser(e Expirer, logger *slog.Logger) *Dismisser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dismisser{
		expirer: e,
		logger:  logger,
		timers:  make(map[string]*dismissTimer),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Schedule arms the timer for a delivery. Notifications without a duration
// stay until they are closed.
func (d *Dismisser) Schedule(del engine.Delivery) {
	id := del.Notification.ID
	after := del.Notification.DisplayDuration()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if prev, ok := d.timers[id]; ok {
		prev.timer.Stop()
		delete(d.timers, id)
	}
	if after <= 0 {
		return
	}

	t := &dismissTimer{surfaceID: del.SurfaceID}
	t.timer = d.afterFunc(after, func() { d.fire(id, t) })
	d.timers[id] = t
}

func (d *Dismisser) fire(notificationID string, t *dismissTimer) {
	d.mu.Lock()
	if d.timers[notificationID] != t {
		d.mu.Unlock()
		return
	}
	delete(d.timers, notificationID)
	d.mu.Unlock()

	err := d.expirer.Expire(t.surfaceID, notificationID)
	switch {
	case err == nil:
		d.logger.Debug("notification expired", "id", notificationID, "surface", t.surfaceID)
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, engine.ErrStateConflict):
		// Moved or closed while the timer was running.
		d.logger.Debug("expire skipped", "id", notificationID, "surface", t.surfaceID, "error", err)
	default:
		d.logger.Warn("failed to expire notification", "id", notificationID, "surface", t.surfaceID, "error", err)
	}
}

// Cancel stops the timer of a notification.
func (d *Dismisser) Cancel(notificationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[notificationID]; ok {
		t.timer.Stop()
		delete(d.timers, notificationID)
	}
}

// Pending returns the number of armed timers.
func (d *Dismisser) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every timer. Later deliveries are ignored.
func (d *Dismisser) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.timer.Stop()
		delete(d.timers, id)
	}
	d.stopped = true
}
