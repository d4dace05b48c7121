package engine

import "sort"

// slotState is the lifecycle state of one arena slot.
type slotState int

const (
	slotFree     slotState = iota
	slotReserved           // Capacity taken, provider is creating the surface
	slotActive             // Surface exists and is visible
	slotIdle               // Surface exists, is hidden, and can be reused
	slotClosing            // Surface is being destroyed; still counts against capacity
)

func (s slotState) String() string {
	switch s {
	case slotReserved:
		return "reserved"
	case slotActive:
		return "active"
	case slotIdle:
		return "idle"
	case slotClosing:
		return "closing"
	default:
		return "free"
	}
}

// slot is one surface position in the fixed-size arena.
type slot struct {
	index     int
	state     slotState
	surfaceID string
	order     uint64 // Creation order, the stable reflow sort key
	x, y      int
	height    int

	// ready is set once the surface's content has signalled it can take a payload.
	ready bool
	// busy marks a provider transition (show, hide, close) in flight for this slot.
	// Busy slots are never selected by the orchestrator.
	busy bool
}

// windowPool is a fixed arena of MaxWindows slots. Every surface the engine
// knows about occupies exactly one slot, so |active|+|idle|+|reserved| can
// never exceed the arena size.
type windowPool struct {
	slots     []slot
	byID      map[string]int // surface id -> slot index
	idle      []int          // Stack of idle slot indices, most recently pooled last
	nextOrder uint64
}

func newWindowPool(maxWindows int) *windowPool {
	p := &windowPool{
		slots: make([]slot, maxWindows),
		byID:  make(map[string]int, maxWindows),
	}
	for i := range p.slots {
		p.slots[i].index = i
	}
	return p
}

// hasCapacity reports whether a free slot exists.
func (p *windowPool) hasCapacity() bool {
	for i := range p.slots {
		if p.slots[i].state == slotFree {
			return true
		}
	}
	return false
}

// reserve takes a free slot for a surface about to be created. The check and
// the claim happen together, which is what keeps concurrent creators under the cap.
func (p *windowPool) reserve(surfaceID string, x, y, height int) (*slot, error) {
	if _, exists := p.byID[surfaceID]; exists {
		return nil, stateConflict("reserve", "surface %s already known", surfaceID)
	}
	for i := range p.slots {
		s := &p.slots[i]
		if s.state != slotFree {
			continue
		}
		*s = slot{
			index:     i,
			state:     slotReserved,
			surfaceID: surfaceID,
			order:     p.nextOrder,
			x:         x,
			y:         y,
			height:    height,
		}
		p.nextOrder++
		p.byID[surfaceID] = i
		return s, nil
	}
	return nil, capacityExceeded("reserve", "all %d surface slots in use", len(p.slots))
}

// register records a created surface as active with its measured height.
// A surface with no reservation takes a free slot if one exists.
func (p *windowPool) register(surfaceID string, x, y, measuredHeight int) (*slot, error) {
	s, ok := p.get(surfaceID)
	if !ok {
		var err error
		if s, err = p.reserve(surfaceID, x, y, measuredHeight); err != nil {
			return nil, err
		}
	}
	if s.state != slotReserved {
		return nil, stateConflict("register", "surface %s is already %s", surfaceID, s.state)
	}
	s.state = slotActive
	s.x, s.y = x, y
	if measuredHeight > 0 {
		s.height = measuredHeight
	}
	return s, nil
}

// release frees a slot regardless of its state.
func (p *windowPool) release(surfaceID string) {
	idx, ok := p.byID[surfaceID]
	if !ok {
		return
	}
	delete(p.byID, surfaceID)
	p.removeIdleIndex(idx)
	p.slots[idx] = slot{index: idx}
}

func (p *windowPool) get(surfaceID string) (*slot, bool) {
	idx, ok := p.byID[surfaceID]
	if !ok {
		return nil, false
	}
	return &p.slots[idx], true
}

// beginHide takes an active surface out of the layout while the provider hides it.
// It is not reusable until finishHide pushes it onto the idle stack.
func (p *windowPool) beginHide(s *slot) {
	s.state = slotIdle
	s.busy = true
}

func (p *windowPool) finishHide(s *slot) {
	s.busy = false
	p.removeIdleIndex(s.index)
	p.idle = append(p.idle, s.index)
}

// abortTransition returns a busy surface to active after a failed hide or close.
func (p *windowPool) abortTransition(s *slot) {
	p.removeIdleIndex(s.index)
	s.state = slotActive
	s.busy = false
}

func (p *windowPool) beginClose(s *slot) {
	p.removeIdleIndex(s.index)
	s.state = slotClosing
	s.busy = true
}

// claimIdle pops the most recently pooled surface and marks it active and busy.
// The caller either commits (clears busy) or rolls back with returnIdle.
func (p *windowPool) claimIdle() (*slot, bool) {
	for len(p.idle) > 0 {
		idx := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		s := &p.slots[idx]
		if s.state != slotIdle || s.busy {
			continue
		}
		s.state = slotActive
		s.busy = true
		return s, true
	}
	return nil, false
}

// activate moves a specific idle surface to active and marks it busy.
func (p *windowPool) activate(s *slot) {
	p.removeIdleIndex(s.index)
	s.state = slotActive
	s.busy = true
}

// returnIdle puts a claimed surface back on the idle stack.
func (p *windowPool) returnIdle(s *slot) {
	s.state = slotIdle
	s.busy = false
	p.idle = append(p.idle, s.index)
}

func (p *windowPool) removeIdleIndex(idx int) {
	for i, v := range p.idle {
		if v == idx {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return
		}
	}
}

// pruneIdle drops idle stack entries that no longer point at an idle surface.
func (p *windowPool) pruneIdle() int {
	kept := p.idle[:0]
	seen := make(map[int]bool, len(p.idle))
	dropped := 0
	for _, idx := range p.idle {
		s := &p.slots[idx]
		if s.state != slotIdle || seen[idx] {
			dropped++
			continue
		}
		if i, ok := p.byID[s.surfaceID]; !ok || i != idx {
			dropped++
			continue
		}
		seen[idx] = true
		kept = append(kept, idx)
	}
	p.idle = kept
	return dropped
}

// findUnassignedActive returns the oldest active, settled surface the
// assignment table does not reference.
func (p *windowPool) findUnassignedActive(assigned func(surfaceID string) bool) (*slot, bool) {
	for _, s := range p.inState(slotActive) {
		if !s.busy && !assigned(s.surfaceID) {
			return s, true
		}
	}
	return nil, false
}

// inState returns slots in the given states sorted by creation order.
func (p *windowPool) inState(states ...slotState) []*slot {
	var out []*slot
	for i := range p.slots {
		s := &p.slots[i]
		for _, st := range states {
			if s.state == st {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// occupying returns the slots that take up screen space: active and reserved.
func (p *windowPool) occupying() []*slot {
	return p.inState(slotActive, slotReserved)
}

func (p *windowPool) count(state slotState) int {
	n := 0
	for i := range p.slots {
		if p.slots[i].state == state {
			n++
		}
	}
	return n
}

// existing counts surfaces that exist at the provider: everything but free and reserved slots.
func (p *windowPool) existing() int {
	return p.count(slotActive) + p.count(slotIdle) + p.count(slotClosing)
}

// idleIDs returns idle surface ids in stack order, next-to-be-reused last.
func (p *windowPool) idleIDs() []string {
	ids := make([]string, 0, len(p.idle))
	for _, idx := range p.idle {
		ids = append(ids, p.slots[idx].surfaceID)
	}
	return ids
}

func (p *windowPool) capacity() int {
	return len(p.slots)
}
