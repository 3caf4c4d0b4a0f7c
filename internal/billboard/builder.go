package billboard

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/scene"
)

// Builder turns a loaded entity into a drawable and tears it down again.
// Build must attach the node to the scene; Teardown must detach and dispose it.
type Builder interface {
	Build(e *Entity, tex *asset.Texture) (scene.Node, error)
	Teardown(e *Entity, node scene.Node)
}

// kindTemplates are the shared pieces of one kind.
type kindTemplates struct {
	panel *scene.Template
	post  *scene.Template
}

// SceneBuilder builds billboards from shared templates. Panels and posts
// borrow shared geometry; lights, accent trims and the per-texture face
// materials are owned by the entity.
type SceneBuilder struct {
	graph     scene.Graph
	templates [kindCount]kindTemplates
}

// NewSceneBuilder fetches every kind's templates from the registry up front.
func NewSceneBuilder(graph scene.Graph, registry *scene.Registry) *SceneBuilder {
	b := &SceneBuilder{graph: graph}

	post := registry.Template("billboard/post", func() (*scene.Geometry, *scene.Material) {
		return &scene.Geometry{Name: "billboard/post", Vertices: 96},
			&scene.Material{Name: "galvanized-steel"}
	})

	for _, k := range Kinds() {
		spec := k.Spec()
		name := "billboard/" + spec.Name + "/panel"
		panel := registry.Template(name, func() (*scene.Geometry, *scene.Material) {
			return &scene.Geometry{Name: name, Vertices: 24}, &scene.Material{Name: "panel-backing"}
		})
		b.templates[k] = kindTemplates{panel: panel, post: post}
	}
	return b
}

// Build assembles the billboard and adds it to the graph.
func (b *SceneBuilder) Build(e *Entity, tex *asset.Texture) (scene.Node, error) {
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("building billboard %s: invalid kind %d", e.ID, e.Kind)
	}
	spec := e.Kind.Spec()
	tmpl := b.templates[e.Kind]

	root := scene.NewGroup(e.ID, e.Position)
	panelCentre := e.Position.Add(mgl64.Vec3{0, spec.Elevation, 0})

	for i := range spec.Faces {
		face := &scene.Material{Name: fmt.Sprintf("%s/face-%d", e.ID, i), TextureKey: tex.Key}
		mesh := scene.NewMesh(face.Name, scene.Shared(tmpl.panel.Geometry), scene.Owned(face), panelCentre)
		root.Attach(scene.Owned[scene.Node](mesh))
	}

	for i := range spec.Posts {
		offset := postOffset(i, spec.Posts, spec.PanelWidth)
		mesh := tmpl.post.Mesh(fmt.Sprintf("%s/post-%d", e.ID, i), e.Position.Add(mgl64.Vec3{offset, 0, 0}))
		root.Attach(scene.Owned[scene.Node](mesh))
	}

	for i := range spec.Lights {
		offset := postOffset(i, spec.Lights, spec.PanelWidth)
		pos := panelCentre.Add(mgl64.Vec3{offset, -spec.PanelHeight / 2, 1})
		root.Attach(scene.Owned[scene.Node](scene.NewLight(fmt.Sprintf("%s/light-%d", e.ID, i), pos, 1500)))
	}

	if spec.Accent {
		trim := scene.NewMesh(e.ID+"/accent",
			scene.Owned(&scene.Geometry{Name: e.ID + "/accent", Vertices: 48}),
			scene.Owned(&scene.Material{Name: e.ID + "/accent", Emissive: true}),
			panelCentre.Add(mgl64.Vec3{0, spec.PanelHeight/2 + 0.3, 0}))
		root.Attach(scene.Owned[scene.Node](trim))
	}

	b.graph.Add(root)
	return root, nil
}

// Teardown detaches node and disposes what the entity owns.
func (b *SceneBuilder) Teardown(_ *Entity, node scene.Node) {
	if node == nil {
		return
	}
	b.graph.Remove(node)
	node.Dispose()
}

// postOffset spreads n items evenly across width, centred on zero.
func postOffset(i, n int, width float64) float64 {
	if n <= 1 {
		return 0
	}
	step := width / float64(n-1)
	return -width/2 + step*float64(i)
}
