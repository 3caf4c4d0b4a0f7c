package billboard

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/corridor/internal/scene"
)

// State is the resource state of an entity.
type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateCulled // loaded but hidden
	StateError  // retry budget exhausted
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateCulled:
		return "culled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Placement is the static definition of a billboard, as stored in the catalog.
type Placement struct {
	ID       string
	Kind     Kind
	Position mgl64.Vec3
	Texture  string
}

// Repository loads placements at world-load time.
type Repository interface {
	LoadAll(ctx context.Context) ([]Placement, error)
}

// Entity is a billboard tracked by the Manager.
type Entity struct {
	ID       string
	Kind     Kind
	Position mgl64.Vec3
	Texture  string // primary texture key

	index int // insertion order, breaks distance ties

	state      State
	textureKey string // key to request next / currently held
	held       bool   // a cache reference on textureKey is held
	attempts   int    // failed loads so far
	content    scene.Node

	distance float64
	front    bool
}

// State returns the entity's current state.
func (e *Entity) State() State { return e.state }

// TextureKey returns the key the entity holds or will request next.
func (e *Entity) TextureKey() string { return e.textureKey }

// Attempts returns the number of failed loads.
func (e *Entity) Attempts() int { return e.attempts }

// Content returns the built drawable, nil unless Loaded or Culled.
func (e *Entity) Content() scene.Node { return e.content }

// Distance returns the distance to the viewer measured on the last scan.
func (e *Entity) Distance() float64 { return e.distance }

// InFront reports whether the entity was ahead of the viewer on the last scan.
func (e *Entity) InFront() bool { return e.front }

// resident reports whether the entity counts against the concurrency cap.
func (e *Entity) resident() bool {
	return e.state == StateLoading || e.state == StateLoaded || e.state == StateCulled
}
