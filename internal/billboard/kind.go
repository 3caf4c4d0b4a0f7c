package billboard

import (
	"fmt"
	"strings"
)

// Kind is the closed set of billboard shapes.
type Kind uint8

const (
	KindLargeDual Kind = iota
	KindLargeSingle
	KindSmall

	kindCount
)

// KindSpec is the per-kind build data.
type KindSpec struct {
	Name        string
	Faces       int     // printed panels (dual billboards face both directions)
	Posts       int     // support posts
	Lights      int     // owned flood lights
	Accent      bool    // owned accent trim mesh
	PanelWidth  float64 // metres
	PanelHeight float64
	Elevation   float64 // panel centre above ground
}

var kindSpecs = [kindCount]KindSpec{
	KindLargeDual: {
		Name:        "large-dual",
		Faces:       2,
		Posts:       2,
		Lights:      4,
		Accent:      true,
		PanelWidth:  14,
		PanelHeight: 5,
		Elevation:   9,
	},
	KindLargeSingle: {
		Name:        "large-single",
		Faces:       1,
		Posts:       2,
		Lights:      2,
		PanelWidth:  12,
		PanelHeight: 4,
		Elevation:   8,
	},
	KindSmall: {
		Name:        "small",
		Faces:       1,
		Posts:       1,
		Lights:      0,
		PanelWidth:  4,
		PanelHeight: 2.5,
		Elevation:   3,
	},
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindLargeDual, KindLargeSingle, KindSmall}
}

// Spec returns the build data for k.
func (k Kind) Spec() KindSpec {
	if !k.Valid() {
		return KindSpec{}
	}
	return kindSpecs[k]
}

// Valid reports whether k is a declared kind.
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindSpecs[k].Name
}

// ParseKind maps a catalog name ("large-dual", "large-single", "small") to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if kindSpecs[k].Name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown billboard kind %q", s)
}
