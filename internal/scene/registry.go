package scene

import (
	"log/slog"
	"sync"
)

// Template is a shared geometry/material pair.
type Template struct {
	Name     string
	Geometry *Geometry
	Material *Material
}

// Mesh builds a mesh that borrows the template's geometry and material.
func (t *Template) Mesh(name string, pos Vec3) *Mesh {
	return NewMesh(name, Shared(t.Geometry), Shared(t.Material), pos)
}

// Registry owns shared templates. Each template is built once on first
// request and lives until Shutdown; holders only ever borrow it.
// One registry per process; pass it to components explicitly.
type Registry struct {
	mu        sync.Mutex
	templates map[string]*Template
	shutdown  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Template returns the named template, calling build only if it does not exist yet.
func (r *Registry) Template(name string, build func() (*Geometry, *Material)) *Template {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.templates[name]; ok {
		return t
	}

	geo, mat := build()
	t := &Template{Name: name, Geometry: geo, Material: mat}
	r.templates[name] = t
	slog.Debug("shared template created", "name", name)
	return t
}

// Len returns the number of templates created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.templates)
}

// Shutdown disposes every template. Call once at process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return
	}
	r.shutdown = true
	for _, t := range r.templates {
		t.Geometry.Dispose()
		t.Material.Dispose()
	}
	slog.Debug("shared templates disposed", "count", len(r.templates))
}
