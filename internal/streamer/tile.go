package streamer

import (
	"slices"

	"github.com/udisondev/corridor/internal/scene"
)

// Tile is a pooled, fixed-length piece of road. Tiles are recycled to new
// grid positions rather than destroyed.
type Tile struct {
	id       int
	index    int // grid index, position = index * TileLength
	position float64
	lod      LOD
	content  *scene.Group

	// detail textures held in the cache; generation is bumped on every
	// reposition so completions for an old position can be recognised.
	details    []string
	generation uint64
	pending    int

	recycles int
	removed  bool
	distance float64
}

// ID returns the tile's stable pool id.
func (t *Tile) ID() int { return t.id }

// Index returns the grid index the tile currently covers.
func (t *Tile) Index() int { return t.index }

// Position returns the progress coordinate of the tile's start.
func (t *Tile) Position() float64 { return t.position }

// LOD returns the last assigned level of detail.
func (t *Tile) LOD() LOD { return t.lod }

// Content returns the tile's scene group.
func (t *Tile) Content() *scene.Group { return t.content }

// Details returns the detail texture keys currently held.
func (t *Tile) Details() []string { return slices.Clone(t.details) }

// PendingDetails returns the number of detail loads not yet applied.
func (t *Tile) PendingDetails() int { return t.pending }

// Recycles returns how many times the tile was moved to a new position.
func (t *Tile) Recycles() int { return t.recycles }

// Distance returns the distance to the viewer measured on the last tick.
func (t *Tile) Distance() float64 { return t.distance }
