package streamer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/scene"
)

// TileBuilder creates and recycles tile content.
//
// Build creates the content for a new tile and attaches it to the scene.
// Rebuild moves existing content to the tile's new position and replaces only
// the position-dependent parts. Teardown detaches and disposes the content.
type TileBuilder interface {
	Build(t *Tile, plan DecorPlan) *scene.Group
	Rebuild(t *Tile, plan DecorPlan)
	AttachDetail(t *Tile, tex *asset.Texture)
	Teardown(t *Tile)
}

const dashesPerTile = 8

// RoadBuilder builds tiles from shared templates: asphalt surface, lane
// markings, prop shapes and the detail overlay geometry. Only the detail
// materials are owned by a tile.
type RoadBuilder struct {
	graph      scene.Graph
	tileLength float64

	surface *scene.Template
	marking *scene.Template
	overlay *scene.Template
	props   [propKindCount]*scene.Template
}

// NewRoadBuilder fetches the road templates from registry.
func NewRoadBuilder(graph scene.Graph, registry *scene.Registry, tileLength float64) *RoadBuilder {
	b := &RoadBuilder{graph: graph, tileLength: tileLength}

	b.surface = registry.Template("road/surface", func() (*scene.Geometry, *scene.Material) {
		return &scene.Geometry{Name: "road/surface", Vertices: 4 * 16}, &scene.Material{Name: "asphalt"}
	})
	b.marking = registry.Template("road/dash", func() (*scene.Geometry, *scene.Material) {
		return &scene.Geometry{Name: "road/dash", Vertices: 4}, &scene.Material{Name: "road-paint"}
	})
	b.overlay = registry.Template("road/detail-overlay", func() (*scene.Geometry, *scene.Material) {
		return &scene.Geometry{Name: "road/detail-overlay", Vertices: 4 * 16}, &scene.Material{Name: "overlay"}
	})
	for k := range propKindCount {
		name := "prop/" + k.String()
		b.props[k] = registry.Template(name, func() (*scene.Geometry, *scene.Material) {
			return &scene.Geometry{Name: name, Vertices: 256}, &scene.Material{Name: name}
		})
	}
	return b
}

// Build creates the tile group with all four sub-groups.
func (b *RoadBuilder) Build(t *Tile, plan DecorPlan) *scene.Group {
	origin := mgl64.Vec3{0, 0, t.position}
	g := scene.NewGroup(fmt.Sprintf("tile-%d", t.id), origin)

	centre := origin.Add(mgl64.Vec3{0, 0, b.tileLength / 2})
	g.Sub(SubSurface).Attach(scene.Owned[scene.Node](b.surface.Mesh(g.Name()+"/surface", centre)))

	markings := g.Sub(SubMarkings)
	step := b.tileLength / dashesPerTile
	for i := range dashesPerTile {
		pos := origin.Add(mgl64.Vec3{0, 0.01, step * (float64(i) + 0.5)})
		markings.Attach(scene.Owned[scene.Node](b.marking.Mesh(fmt.Sprintf("%s/dash-%d", g.Name(), i), pos)))
	}

	g.Sub(SubProps)
	g.Sub(SubDetail)
	b.placeProps(g, origin, plan)

	b.graph.Add(g)
	return g
}

// Rebuild shifts the surface and markings to the new position and replaces
// props and detail overlays.
func (b *RoadBuilder) Rebuild(t *Tile, plan DecorPlan) {
	g := t.content
	delta := mgl64.Vec3{0, 0, t.position - g.Position.Z()}
	g.Position = mgl64.Vec3{0, 0, t.position}

	for _, sub := range []string{SubSurface, SubMarkings} {
		for _, c := range g.Sub(sub).Children() {
			if m, ok := c.Get().(*scene.Mesh); ok {
				m.Position = m.Position.Add(delta)
			}
		}
	}

	g.Sub(SubProps).Clear()
	g.Sub(SubDetail).Clear()
	b.placeProps(g, g.Position, plan)
}

func (b *RoadBuilder) placeProps(g *scene.Group, origin mgl64.Vec3, plan DecorPlan) {
	props := g.Sub(SubProps)
	for i, p := range plan.Props {
		pos := origin.Add(mgl64.Vec3{p.Lateral, 0, p.Along})
		mesh := b.props[p.Kind].Mesh(fmt.Sprintf("%s/%s-%d", g.Name(), p.Kind, i), pos)
		props.Attach(scene.Owned[scene.Node](mesh))
	}
}

// AttachDetail adds an overlay that samples tex. The overlay material is
// owned by the tile; the texture itself stays in the cache.
func (b *RoadBuilder) AttachDetail(t *Tile, tex *asset.Texture) {
	g := t.content
	mat := &scene.Material{Name: fmt.Sprintf("%s/detail/%s", g.Name(), tex.Key), TextureKey: tex.Key}
	centre := g.Position.Add(mgl64.Vec3{0, 0.005, b.tileLength / 2})
	mesh := scene.NewMesh(mat.Name, scene.Shared(b.overlay.Geometry), scene.Owned(mat), centre)
	g.Sub(SubDetail).Attach(scene.Owned[scene.Node](mesh))
}

// Teardown detaches the tile and disposes its owned parts.
func (b *RoadBuilder) Teardown(t *Tile) {
	if t.content == nil {
		return
	}
	b.graph.Remove(t.content)
	t.content.Dispose()
}
