package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Group is a node with owned children and named sub-groups. Sub-groups let
// callers toggle parts of the content (markings, props...) without rebuilding it.
type Group struct {
	name     string
	Position mgl64.Vec3

	children []Ref[Node]
	subs     map[string]*Group
	order    []string

	visible  bool
	disposed bool
}

// NewGroup creates an empty visible group.
func NewGroup(name string, pos mgl64.Vec3) *Group {
	return &Group{
		name:     name,
		Position: pos,
		subs:     make(map[string]*Group),
		visible:  true,
	}
}

func (g *Group) Name() string { return g.name }
func (g *Group) SetVisible(v bool) { g.visible = v }
func (g *Group) Visible() bool { return g.visible }
func (g *Group) Disposed() bool { return g.disposed }

// Attach adds a child. Owned children are disposed with the group.
func (g *Group) Attach(child Ref[Node]) {
	g.children = append(g.children, child)
}

// Children returns the direct children (sub-groups excluded).
func (g *Group) Children() []Ref[Node] {
	return g.children
}

// Sub returns the named sub-group, creating it on first use.
func (g *Group) Sub(name string) *Group {
	if sub, ok := g.subs[name]; ok {
		return sub
	}
	sub := NewGroup(name, g.Position)
	g.subs[name] = sub
	g.order = append(g.order, name)
	return sub
}

// HasSub reports whether the named sub-group exists.
func (g *Group) HasSub(name string) bool {
	_, ok := g.subs[name]
	return ok
}

// SetSubVisible toggles a sub-group if it exists.
func (g *Group) SetSubVisible(name string, visible bool) {
	if sub, ok := g.subs[name]; ok {
		sub.SetVisible(visible)
	}
}

// Clear releases every child and sub-group but keeps the group itself usable.
func (g *Group) Clear() {
	for _, c := range g.children {
		c.Release()
	}
	g.children = nil
	for _, name := range g.order {
		g.subs[name].Dispose()
	}
	g.subs = make(map[string]*Group)
	g.order = nil
}

// Count returns the number of nodes below g, sub-groups included.
func (g *Group) Count() int {
	n := len(g.children)
	for _, name := range g.order {
		n += 1 + g.subs[name].Count()
	}
	return n
}

// Dispose releases owned children and sub-groups.
func (g *Group) Dispose() {
	if g.disposed {
		return
	}
	g.Clear()
	g.disposed = true
}
