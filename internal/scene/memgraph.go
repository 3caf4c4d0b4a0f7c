package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is the scene's position type.
type Vec3 = mgl64.Vec3

// MemGraph is an in-memory Graph that only records attachment.
// It stands in for a renderer in the simulator and in tests.
type MemGraph struct {
	mu      sync.RWMutex
	nodes   map[Node]struct{}
	added   uint64
	removed uint64
}

// NewMemGraph creates an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{nodes: make(map[Node]struct{}, 256)}
}

// Add attaches n. Adding an attached node is a no-op.
func (g *MemGraph) Add(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n]; ok {
		return
	}
	g.nodes[n] = struct{}{}
	g.added++
}

// Remove detaches n. Removing a detached node is a no-op.
func (g *MemGraph) Remove(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n]; !ok {
		return
	}
	delete(g.nodes, n)
	g.removed++
}

// Contains reports whether n is attached.
func (g *MemGraph) Contains(n Node) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[n]
	return ok
}

// Len returns the number of attached nodes.
func (g *MemGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// VisibleCount returns the number of attached nodes that are visible.
func (g *MemGraph) VisibleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for node := range g.nodes {
		if node.Visible() {
			n++
		}
	}
	return n
}

// Churn returns cumulative add/remove counts.
func (g *MemGraph) Churn() (added, removed uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.added, g.removed
}
