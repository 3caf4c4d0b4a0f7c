package streamer

// LOD is a tile's level of detail. Lower values show more.
type LOD uint8

const (
	LODFull LOD = iota
	LODMedium
	LODLow
	LODMinimal

	lodCount
)

func (l LOD) String() string {
	switch l {
	case LODFull:
		return "full"
	case LODMedium:
		return "medium"
	case LODLow:
		return "low"
	case LODMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// Tile content sub-groups, toggled by LOD.
const (
	SubSurface  = "surface"
	SubMarkings = "markings"
	SubProps    = "props"
	SubDetail   = "detail"
)

// shows reports whether sub-group sub is visible at level l.
func (l LOD) shows(sub string) bool {
	switch sub {
	case SubSurface:
		return true
	case SubMarkings:
		return l <= LODLow
	case SubProps:
		return l <= LODMedium
	case SubDetail:
		return l == LODFull
	default:
		return false
	}
}

// lodScale stretches the LOD thresholds at speed.
func (c Config) lodScale(speed float64) float64 {
	return min(1+max(speed, 0)*c.LODSpeedFactor, c.MaxLODScale)
}

// LODFor returns the level for a tile at distance from a viewer moving at speed.
func (c Config) LODFor(distance, speed float64) LOD {
	scale := c.lodScale(speed)
	switch {
	case distance <= c.LODFull*scale:
		return LODFull
	case distance <= c.LODMedium*scale:
		return LODMedium
	case distance <= c.LODLow*scale:
		return LODLow
	default:
		return LODMinimal
	}
}
