package streamer

import "math"

// Window returns the coverage span ahead of and behind the viewer at speed.
// Ahead grows linearly with speed up to MaxAhead; behind is constant.
func (c Config) Window(speed float64) (ahead, behind float64) {
	ahead = min(c.BaseAhead+c.AheadPerSpeed*max(speed, 0), c.MaxAhead)
	return ahead, c.Behind
}

// TargetPool returns the pool size the window needs, clamped to [MinPool, MaxPool].
// A span of s tile lengths touches at most ceil(s)+1 grid positions.
func (c Config) TargetPool(speed float64) int {
	ahead, behind := c.Window(speed)
	n := int(math.Ceil((ahead+behind)/c.TileLength)) + 1
	return min(max(n, c.MinPool), c.MaxPool)
}

// gridRange returns the first and last grid index covering [z-behind, z+ahead].
func (c Config) gridRange(z, speed float64) (lo, hi int) {
	ahead, behind := c.Window(speed)
	lo = int(math.Floor((z - behind) / c.TileLength))
	hi = int(math.Floor((z + ahead) / c.TileLength))
	return lo, hi
}

// RequiredPositions returns the grid-aligned tile positions, ascending, that
// must be resident for a viewer at z moving at speed.
func (c Config) RequiredPositions(z, speed float64) []float64 {
	lo, hi := c.gridRange(z, speed)
	out := make([]float64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		out = append(out, float64(k)*c.TileLength)
	}
	return out
}

// tileDistance is the distance from z to the centre of tile k.
func (c Config) tileDistance(k int, z float64) float64 {
	return math.Abs((float64(k)+0.5)*c.TileLength - z)
}
