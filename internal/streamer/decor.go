package streamer

import (
	"encoding/binary"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"
)

// PropKind is a roadside decoration shape.
type PropKind uint8

const (
	PropTree PropKind = iota
	PropShrub
	PropRock
	PropLamp
	PropMarkerPost

	propKindCount
)

var propNames = [propKindCount]string{
	PropTree:       "tree",
	PropShrub:      "shrub",
	PropRock:       "rock",
	PropLamp:       "lamp",
	PropMarkerPost: "marker-post",
}

func (p PropKind) String() string {
	if p >= propKindCount {
		return "unknown"
	}
	return propNames[p]
}

// Prop is one placed decoration, relative to the tile origin.
type Prop struct {
	Kind    PropKind
	Lateral float64 // signed offset from the road centre line
	Along   float64 // [0, TileLength)
	Scale   float64
}

// DecorPlan is the position-dependent content of a tile.
type DecorPlan struct {
	Props   []Prop
	Details []string // detail texture keys, no duplicates
}

const (
	minProps      = 2
	maxProps      = 7
	roadHalfWidth = 8.0
	vergeWidth    = 24.0
)

// DecorSeed derives a stable seed for grid index k. The same seed and index
// always give the same decoration, so recycled tiles look identical when the
// viewer returns to a position.
func DecorSeed(seed uint64, k int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(k)))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// PlanDecor returns the decoration for grid index k.
func (c Config) PlanDecor(k int) DecorPlan {
	s := DecorSeed(c.Seed, k)
	rng := rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))

	n := minProps + rng.IntN(maxProps-minProps+1)
	plan := DecorPlan{Props: make([]Prop, 0, n)}
	for range n {
		side := 1.0
		if rng.IntN(2) == 0 {
			side = -1
		}
		plan.Props = append(plan.Props, Prop{
			Kind:    PropKind(rng.IntN(int(propKindCount))),
			Lateral: side * (roadHalfWidth + rng.Float64()*vergeWidth),
			Along:   rng.Float64() * c.TileLength,
			Scale:   0.7 + rng.Float64()*0.6,
		})
	}

	if len(c.DetailTextures) > 0 {
		first := rng.IntN(len(c.DetailTextures))
		plan.Details = append(plan.Details, c.DetailTextures[first])
		if len(c.DetailTextures) > 1 && rng.IntN(3) == 0 {
			second := (first + 1 + rng.IntN(len(c.DetailTextures)-1)) % len(c.DetailTextures)
			plan.Details = append(plan.Details, c.DetailTextures[second])
		}
	}
	return plan
}
