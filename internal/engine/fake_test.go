package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jmylchreest/toastd/internal/model"
)

// fakeSurfaces records every provider call. With readyOnCreate set it signals
// ready from inside CreateSurface, the way a surface whose content loads
// synchronously would.
type fakeSurfaces struct {
	mu sync.Mutex

	manager       *Manager
	readyOnCreate bool
	heights       map[string]int // Measured height override per surface
	defaultHeight int            // Measured height when no override; 0 reports an error

	created   []string
	shown     []string
	hidden    []string
	focused   []string
	closed    []string
	positions map[string][2]int
	payloads  map[string][]model.Notification

	live    map[string]bool
	maxLive int

	failCreate error
	failShow   error
	failHide   error
	failSend   error

	// sendGate, when set, runs before a payload is recorded, outside the lock.
	sendGate func(id string, n model.Notification)
}

func newFakeSurfaces() *fakeSurfaces {
	return &fakeSurfaces{
		heights:   make(map[string]int),
		positions: make(map[string][2]int),
		payloads:  make(map[string][]model.Notification),
		live:      make(map[string]bool),
	}
}

func (f *fakeSurfaces) CreateSurface(id, contentRef string, width, height int) error {
	f.mu.Lock()
	if f.failCreate != nil {
		err := f.failCreate
		f.mu.Unlock()
		return err
	}
	f.created = append(f.created, id)
	f.live[id] = true
	if len(f.live) > f.maxLive {
		f.maxLive = len(f.live)
	}
	ready := f.readyOnCreate
	m := f.manager
	f.mu.Unlock()

	if ready && m != nil {
		return m.SurfaceReady(id)
	}
	return nil
}

func (f *fakeSurfaces) Show(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failShow != nil {
		return f.failShow
	}
	f.shown = append(f.shown, id)
	return nil
}

func (f *fakeSurfaces) Hide(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHide != nil {
		return f.failHide
	}
	f.hidden = append(f.hidden, id)
	return nil
}

func (f *fakeSurfaces) Focus(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, id)
	return nil
}

func (f *fakeSurfaces) Close(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	delete(f.live, id)
	return nil
}

func (f *fakeSurfaces) SetPosition(id string, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[id] = [2]int{x, y}
	return nil
}

func (f *fakeSurfaces) MeasuredSize(id string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.heights[id]; ok {
		return 400, h, nil
	}
	if f.defaultHeight > 0 {
		return 400, f.defaultHeight, nil
	}
	return 0, 0, errors.New("not measured")
}

func (f *fakeSurfaces) SendPayload(id string, n model.Notification) error {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if gate != nil {
		gate(id, n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.payloads[id] = append(f.payloads[id], n)
	return nil
}

func (f *fakeSurfaces) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeSurfaces) surface(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

func (f *fakeSurfaces) lastPayload(id string) (model.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.payloads[id]
	if len(p) == 0 {
		return model.Notification{}, false
	}
	return p[len(p)-1], true
}

func (f *fakeSurfaces) payloadCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[id])
}

func (f *fakeSurfaces) position(id string) [2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions[id]
}

// fakeMonitor reports a fixed display, or err when set.
type fakeMonitor struct {
	mu      sync.Mutex
	display Display
	err     error
}

func (f *fakeMonitor) PrimaryDisplay() (Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Display{}, f.err
	}
	return f.display, nil
}

func (f *fakeMonitor) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{display: Display{Width: 1000, Height: 800, ScaleFactor: 1}}
}

// checkInvariants verifies the pool and assignment table agree with each other.
func (m *Manager) checkInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.pool.existing() + m.pool.count(slotReserved)
	if used > m.cfg.MaxWindows {
		return fmt.Errorf("%d surfaces in use, cap is %d", used, m.cfg.MaxWindows)
	}

	seen := make(map[string]bool)
	for sid, nid := range m.queue.assignments {
		if seen[nid] {
			return fmt.Errorf("notification %s assigned twice", nid)
		}
		seen[nid] = true
		if m.queue.assignedTo[nid] != sid {
			return fmt.Errorf("reverse index for %s points at %q, want %q", nid, m.queue.assignedTo[nid], sid)
		}
		if _, ok := m.pool.get(sid); !ok {
			return fmt.Errorf("assignment to unknown surface %s", sid)
		}
	}
	if len(m.queue.assignedTo) != len(m.queue.assignments) {
		return fmt.Errorf("assignment index sizes differ: %d vs %d", len(m.queue.assignedTo), len(m.queue.assignments))
	}

	onStack := make(map[int]bool)
	for _, idx := range m.pool.idle {
		if onStack[idx] {
			return fmt.Errorf("slot %d on idle stack twice", idx)
		}
		onStack[idx] = true
		if m.pool.slots[idx].state != slotIdle {
			return fmt.Errorf("slot %d on idle stack is %s", idx, m.pool.slots[idx].state)
		}
	}
	for id, idx := range m.pool.byID {
		if m.pool.slots[idx].surfaceID != id {
			return fmt.Errorf("surface %s indexes slot holding %s", id, m.pool.slots[idx].surfaceID)
		}
	}
	return nil
}
