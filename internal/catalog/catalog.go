// Package catalog reads static billboard placements from YAML.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/corridor/internal/billboard"
)

// Entry is one billboard as written in the catalog file.
type Entry struct {
	ID      string  `yaml:"id"`
	Kind    string  `yaml:"kind"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Texture string  `yaml:"texture"`
}

type document struct {
	Billboards []Entry `yaml:"billboards"`
}

// Parse decodes a catalog document. Entries keep file order.
func Parse(data []byte) ([]billboard.Placement, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Billboards))
	out := make([]billboard.Placement, 0, len(doc.Billboards))
	for i, e := range doc.Billboards {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}

		kind, err := billboard.ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.ID, err)
		}
		out = append(out, billboard.Placement{
			ID:       e.ID,
			Kind:     kind,
			Position: mgl64.Vec3{e.X, e.Y, e.Z},
			Texture:  e.Texture,
		})
	}
	return out, nil
}

// File is a billboard.Repository backed by a YAML file.
type File struct {
	Path string
}

// LoadAll reads and parses the file.
func (f File) LoadAll(_ context.Context) ([]billboard.Placement, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", f.Path, err)
	}
	placements, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", f.Path, err)
	}
	return placements, nil
}

// Marshal encodes placements in catalog format.
func Marshal(placements []billboard.Placement) ([]byte, error) {
	doc := document{Billboards: make([]Entry, 0, len(placements))}
	for _, p := range placements {
		doc.Billboards = append(doc.Billboards, Entry{
			ID:      p.ID,
			Kind:    p.Kind.String(),
			X:       p.Position.X(),
			Y:       p.Position.Y(),
			Z:       p.Position.Z(),
			Texture: p.Texture,
		})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return data, nil
}
