package streamer

import (
	"cmp"
	"slices"
)

// trim removes tiles, farthest from the viewer first, until the pool has at
// most limit tiles. Tiles closer than minDist are kept. Tiles inside the
// coverage window are only removed when force is set, and only after every
// tile outside it. Returns the number removed.
//
// Periodic cleanup calls trim with the target pool and a distance floor;
// the emergency path calls it with the hard cap and force.
func (s *Streamer) trim(limit int, minDist float64, force bool) int {
	excess := len(s.tiles) - limit
	if excess <= 0 {
		return 0
	}

	order := slices.Clone(s.tiles)
	for _, t := range order {
		t.distance = s.cfg.tileDistance(t.index, s.z)
	}
	slices.SortFunc(order, func(a, b *Tile) int {
		ra, rb := s.required(a.index), s.required(b.index)
		if ra != rb {
			if ra {
				return 1
			}
			return -1
		}
		return cmp.Compare(b.distance, a.distance)
	})

	removed := 0
	for _, t := range order {
		if removed == excess {
			break
		}
		if t.distance < minDist {
			continue
		}
		if s.required(t.index) && !force {
			continue
		}
		s.remove(t)
		removed++
	}

	if removed > 0 {
		s.tiles = slices.DeleteFunc(s.tiles, func(t *Tile) bool { return t.removed })
	}
	return removed
}
