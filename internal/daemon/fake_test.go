package daemon

import (
	"sync"

	"github.com/jmylchreest/toastd/internal/dbus"
	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

// surfaces is a SurfaceProvider whose surfaces load immediately.
type surfaces struct {
	mu       sync.Mutex
	manager  *engine.Manager
	created  []string
	payloads map[string][]model.Notification

	// onPayload runs after a payload is recorded, outside the lock.
	onPayload func(id string, n model.Notification)
}

func newSurfaces() *surfaces {
	return &surfaces{payloads: make(map[string][]model.Notification)}
}

func (f *surfaces) CreateSurface(id, contentRef string, width, height int) error {
	f.mu.Lock()
	f.created = append(f.created, id)
	m := f.manager
	f.mu.Unlock()
	if m != nil {
		return m.SurfaceReady(id)
	}
	return nil
}

func (f *surfaces) Show(id string) error                  { return nil }
func (f *surfaces) Hide(id string) error                  { return nil }
func (f *surfaces) Focus(id string) error                 { return nil }
func (f *surfaces) Close(id string) error                 { return nil }
func (f *surfaces) SetPosition(id string, x, y int) error { return nil }

func (f *surfaces) MeasuredSize(id string) (int, int, error) {
	return 400, 120, nil
}

func (f *surfaces) SendPayload(id string, n model.Notification) error {
	f.mu.Lock()
	f.payloads[id] = append(f.payloads[id], n)
	hook := f.onPayload
	f.mu.Unlock()
	if hook != nil {
		hook(id, n)
	}
	return nil
}

// surfaceOf returns the surface that last received notification id.
func (f *surfaces) surfaceOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid, ps := range f.payloads {
		if len(ps) > 0 && ps[len(ps)-1].ID == id {
			return sid
		}
	}
	return ""
}

type monitor struct{}

func (monitor) PrimaryDisplay() (engine.Display, error) {
	return engine.Display{Width: 1920, Height: 1080, ScaleFactor: 1}, nil
}

type closedSignal struct {
	id     uint32
	reason dbus.CloseReason
}

type signals struct {
	mu     sync.Mutex
	closed []closedSignal
}

func (s *signals) CloseWithReason(id uint32, reason dbus.CloseReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, closedSignal{id, reason})
	return nil
}

func (s *signals) all() []closedSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]closedSignal(nil), s.closed...)
}

type player struct {
	mu     sync.Mutex
	types  []string
	files  []string
	failed error
}

func (p *player) PlayForType(notificationType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, notificationType)
	return p.failed
}

func (p *player) PlayFile(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, path)
	return p.failed
}

func (p *player) played() ([]string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...), append([]string(nil), p.files...)
}
