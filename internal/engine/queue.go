package engine

import (
	"time"

	"github.com/jmylchreest/toastd/internal/model"
)

// queue holds pending notifications in enqueue order, the surface assignment
// table, and the bounded history of retired notifications.
type queue struct {
	pending []*model.Notification
	byID    map[string]*model.Notification

	// assignments maps surface id -> notification id. assignedTo is the
	// reverse index, which is what keeps a notification on at most one surface.
	assignments map[string]string
	assignedTo  map[string]string

	history []model.Notification
}

func newQueue() *queue {
	return &queue{
		byID:        make(map[string]*model.Notification),
		assignments: make(map[string]string),
		assignedTo:  make(map[string]string),
	}
}

func (q *queue) enqueue(n *model.Notification) error {
	if _, exists := q.byID[n.ID]; exists {
		return stateConflict("enqueue", "notification %s already pending", n.ID)
	}
	n.SurfaceID = ""
	q.pending = append(q.pending, n)
	q.byID[n.ID] = n
	return nil
}

// nextUnassigned returns the oldest pending notification no surface holds.
func (q *queue) nextUnassigned() *model.Notification {
	for _, n := range q.pending {
		if _, assigned := q.assignedTo[n.ID]; !assigned {
			return n
		}
	}
	return nil
}

func (q *queue) unassignedCount() int {
	return len(q.pending) - len(q.assignedTo)
}

func (q *queue) get(notificationID string) (*model.Notification, bool) {
	n, ok := q.byID[notificationID]
	return n, ok
}

// inHistory reports whether the notification was retired and is still in history.
func (q *queue) inHistory(notificationID string) bool {
	for i := range q.history {
		if q.history[i].ID == notificationID {
			return true
		}
	}
	return false
}

// lookupError explains why notificationID is not pending.
func (q *queue) lookupError(op, notificationID string) error {
	if q.inHistory(notificationID) {
		return stateConflict(op, "notification %s already retired", notificationID)
	}
	return notFound(op, "notification %s not found", notificationID)
}

// assignment returns the notification bound to a surface.
func (q *queue) assignment(surfaceID string) (*model.Notification, bool) {
	nid, ok := q.assignments[surfaceID]
	if !ok {
		return nil, false
	}
	return q.byID[nid], true
}

func (q *queue) isAssigned(surfaceID string) bool {
	_, ok := q.assignments[surfaceID]
	return ok
}

// surfaceOf returns the surface holding a notification.
func (q *queue) surfaceOf(notificationID string) (string, bool) {
	sid, ok := q.assignedTo[notificationID]
	return sid, ok
}

// assign binds a pending notification to a surface. A notification the surface
// held before goes back to unassigned; a surface the notification was on
// before loses it. It returns the displaced notification id, if any.
func (q *queue) assign(surfaceID, notificationID string) (string, error) {
	n, ok := q.byID[notificationID]
	if !ok {
		return "", q.lookupError("assign", notificationID)
	}

	if prevSurface, ok := q.assignedTo[notificationID]; ok {
		if prevSurface == surfaceID {
			return "", nil
		}
		delete(q.assignments, prevSurface)
	}

	displaced := ""
	if prev, ok := q.assignments[surfaceID]; ok {
		displaced = prev
		delete(q.assignedTo, prev)
		if d := q.byID[prev]; d != nil {
			d.SurfaceID = ""
		}
	}

	q.assignments[surfaceID] = notificationID
	q.assignedTo[notificationID] = surfaceID
	n.SurfaceID = surfaceID
	return displaced, nil
}

// unassign clears a surface's mapping without retiring the notification.
func (q *queue) unassign(surfaceID string) string {
	nid, ok := q.assignments[surfaceID]
	if !ok {
		return ""
	}
	delete(q.assignments, surfaceID)
	delete(q.assignedTo, nid)
	if n := q.byID[nid]; n != nil {
		n.SurfaceID = ""
	}
	return nid
}

// removeForSurface retires the notification assigned to a surface into history.
func (q *queue) removeForSurface(surfaceID string) (model.Notification, bool) {
	nid, ok := q.assignments[surfaceID]
	if !ok {
		return model.Notification{}, false
	}
	return q.retire(nid)
}

// retire removes a pending notification, clears its assignment and appends it to history.
func (q *queue) retire(notificationID string) (model.Notification, bool) {
	n, ok := q.drop(notificationID)
	if !ok {
		return model.Notification{}, false
	}
	q.history = append(q.history, n)
	return n, true
}

// drop removes a pending notification without archiving it.
func (q *queue) drop(notificationID string) (model.Notification, bool) {
	n, ok := q.byID[notificationID]
	if !ok {
		return model.Notification{}, false
	}
	if sid, ok := q.assignedTo[notificationID]; ok {
		delete(q.assignments, sid)
		delete(q.assignedTo, notificationID)
	}
	delete(q.byID, notificationID)
	for i, p := range q.pending {
		if p.ID == notificationID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return *n, true
}

// setDisplayedTimestamp stamps the first-displayed time. It reports whether
// this call set it.
func (q *queue) setDisplayedTimestamp(notificationID string, at time.Time) (bool, error) {
	n, ok := q.byID[notificationID]
	if !ok {
		return false, q.lookupError("display", notificationID)
	}
	return n.MarkDisplayed(at), nil
}

// trimHistory drops the oldest history entries above limit and returns how many went.
func (q *queue) trimHistory(limit int) int {
	excess := len(q.history) - limit
	if excess <= 0 {
		return 0
	}
	trimmed := make([]model.Notification, limit)
	copy(trimmed, q.history[excess:])
	q.history = trimmed
	return excess
}

// purged is a pending notification removed by the retention pass.
type purged struct {
	notification model.Notification
	surfaceID    string
}

// purgeExpired drops pending notifications older than ttl. Under
// PurgeDisplayedOnly only displayed notifications age out, measured from their
// first-displayed time. PurgeAll also ages out never-displayed ones by creation time.
func (q *queue) purgeExpired(now time.Time, ttl time.Duration, policy RetentionPolicy) []purged {
	cutoff := now.Add(-ttl).Unix()

	var expired []string
	for _, n := range q.pending {
		switch {
		case n.Displayed():
			if n.Timestamp < cutoff {
				expired = append(expired, n.ID)
			}
		case policy == PurgeAll:
			if n.CreatedAt < cutoff {
				expired = append(expired, n.ID)
			}
		}
	}

	out := make([]purged, 0, len(expired))
	for _, id := range expired {
		sid := q.assignedTo[id]
		if n, ok := q.drop(id); ok {
			out = append(out, purged{notification: n, surfaceID: sid})
		}
	}
	return out
}

// snapshotHistory returns a copy of history, oldest first.
func (q *queue) snapshotHistory() []model.Notification {
	out := make([]model.Notification, len(q.history))
	copy(out, q.history)
	return out
}

// snapshotPending returns copies of the pending notifications in enqueue order.
func (q *queue) snapshotPending() []model.Notification {
	out := make([]model.Notification, len(q.pending))
	for i, n := range q.pending {
		out[i] = *n
	}
	return out
}
