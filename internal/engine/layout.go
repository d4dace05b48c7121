package engine

import "sort"

// move is a request to place a surface at (x, y).
type move struct {
	surfaceID string
	x, y      int
}

// anchorX returns the left edge of a surface pinned to the top-right corner.
func anchorX(screenWidth int, cfg Config) int {
	x := screenWidth - cfg.Width - cfg.Margin
	if x < 0 {
		return 0
	}
	return x
}

// nextPosition returns where the next surface goes: below the lowest bottom
// edge of the occupying slots, or at the top margin when there are none.
func nextPosition(slots []*slot, screenWidth int, cfg Config) (x, y int) {
	x = anchorX(screenWidth, cfg)
	y = cfg.Margin
	for _, s := range slots {
		if bottom := s.y + slotHeight(s, cfg) + cfg.Margin; bottom > y {
			y = bottom
		}
	}
	return x, y
}

// reflow restacks slots top to bottom from the top margin in creation order,
// using each slot's measured height. It updates the slots in place and returns
// one move per created surface. Reserved slots get a new y but no move since
// their surface does not exist yet.
func reflow(slots []*slot, cfg Config) []move {
	ordered := make([]*slot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	moves := make([]move, 0, len(ordered))
	y := cfg.Margin
	for _, s := range ordered {
		s.y = y
		y += slotHeight(s, cfg) + cfg.Margin
		if s.state == slotReserved {
			continue
		}
		moves = append(moves, move{surfaceID: s.surfaceID, x: s.x, y: s.y})
	}
	return moves
}

func slotHeight(s *slot, cfg Config) int {
	if s.height > 0 {
		return s.height
	}
	return cfg.Height
}
