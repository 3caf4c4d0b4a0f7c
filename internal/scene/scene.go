// Package scene is the boundary to the renderer: drawable nodes, the graph
// they are attached to, and shared geometry/material templates.
//
// The streaming core only attaches, detaches and toggles visibility; it never
// reaches into renderer internals.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Node is a drawable attached to a Graph.
type Node interface {
	Name() string
	SetVisible(visible bool)
	Visible() bool
	Dispose()
}

// Graph is the scene-graph collaborator.
type Graph interface {
	Add(n Node)
	Remove(n Node)
}

// Geometry is vertex data. Shared instances live in a Registry.
type Geometry struct {
	Name     string
	Vertices int

	disposed bool
}

// Dispose marks the geometry as freed.
func (g *Geometry) Dispose() { g.disposed = true }

// Disposed reports whether Dispose was called.
func (g *Geometry) Disposed() bool { return g.disposed }

// Material describes surface appearance. TextureKey is a borrowed cache key;
// the material never releases it.
type Material struct {
	Name       string
	TextureKey string
	Emissive   bool

	disposed bool
}

// Dispose marks the material as freed.
func (m *Material) Dispose() { m.disposed = true }

// Disposed reports whether Dispose was called.
func (m *Material) Disposed() bool { return m.disposed }

// Mesh pairs geometry and material at a position.
type Mesh struct {
	name     string
	Geometry Ref[*Geometry]
	Material Ref[*Material]
	Position mgl64.Vec3

	visible  bool
	disposed bool
}

// NewMesh creates a visible mesh.
func NewMesh(name string, geometry Ref[*Geometry], material Ref[*Material], pos mgl64.Vec3) *Mesh {
	return &Mesh{
		name:     name,
		Geometry: geometry,
		Material: material,
		Position: pos,
		visible:  true,
	}
}

func (m *Mesh) Name() string { return m.name }
func (m *Mesh) SetVisible(v bool) { m.visible = v }
func (m *Mesh) Visible() bool { return m.visible }
func (m *Mesh) Disposed() bool { return m.disposed }

// Dispose releases owned geometry and material; shared ones are left alone.
func (m *Mesh) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.Geometry.Release()
	m.Material.Release()
}

// Light is a per-entity point light.
type Light struct {
	name      string
	Position  mgl64.Vec3
	Intensity float64

	visible  bool
	disposed bool
}

// NewLight creates a visible light.
func NewLight(name string, pos mgl64.Vec3, intensity float64) *Light {
	return &Light{name: name, Position: pos, Intensity: intensity, visible: true}
}

func (l *Light) Name() string { return l.name }
func (l *Light) SetVisible(v bool) { l.visible = v }
func (l *Light) Visible() bool { return l.visible }
func (l *Light) Dispose() { l.disposed = true }
func (l *Light) Disposed() bool { return l.disposed }
