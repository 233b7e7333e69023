// Package scene describes an assembly job: named parts built from
// primitives, their starting placements, and the ordered assembly steps
// that attach one part to another. Scenes are produced by the script
// evaluator and consumed by the application layer.
package scene

import (
	"fmt"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/chazu/joinery/pkg/geom"
)

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // rectangular block, min corner at the origin
	PrimCylinder                      // cylinder centred on the Z axis
	PrimSphere                        // sphere centred on the origin
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimSphere:
		return "sphere"
	default:
		return fmt.Sprintf("PrimitiveKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k PrimitiveKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Bore is a through hole drilled along a box axis. U and V locate it in
// the two remaining axes, taken in X, Y, Z order.
type Bore struct {
	Axis   int     `json:"axis"` // 0=X, 1=Y, 2=Z
	U      float64 `json:"u"`
	V      float64 `json:"v"`
	Radius float64 `json:"radius"`
}

// ---------------------------------------------------------------------------
// Parts and steps
// ---------------------------------------------------------------------------

// Part is one solid of the scene.
type Part struct {
	Name string        `json:"name"`
	Kind PrimitiveKind `json:"kind"`
	// Size holds the box dimensions.
	Size geom.Vec3 `json:"size,omitempty"`
	// Height and Radius describe cylinders; spheres use Radius only.
	Height    float64        `json:"height,omitempty"`
	Radius    float64        `json:"radius,omitempty"`
	Bores     []Bore         `json:"bores,omitempty"`
	Placement geom.Transform `json:"placement"`
	Line      int            `json:"line,omitempty"` // source line of the definition
}

// Step attaches the Moving part to the Fixed part.
type Step struct {
	Fixed  string `json:"fixed"`
	Moving string `json:"moving"`
	Line   int    `json:"line,omitempty"`
}

// Settings are per-scene overrides of the assembly configuration. Nil
// fields keep the configured value.
type Settings struct {
	Tolerance           *float64 `json:"tolerance,omitempty"`
	AngularTolerance    *float64 `json:"angularTolerance,omitempty"`
	MaxMatchAttempts    *int     `json:"maxMatchAttempts,omitempty"`
	RequireExactContact *bool    `json:"requireExactContact,omitempty"`
	VolumeThreshold     *float64 `json:"volumeThreshold,omitempty"`
	MinScore            *float64 `json:"minScore,omitempty"`
	PinClearance        *float64 `json:"pinClearance,omitempty"`
}

// Apply returns cfg with the overrides in s applied.
func (s Settings) Apply(cfg assembly.Config) assembly.Config {
	if s.Tolerance != nil {
		cfg.Tolerance = *s.Tolerance
	}
	if s.AngularTolerance != nil {
		cfg.AngularTolerance = *s.AngularTolerance
	}
	if s.MaxMatchAttempts != nil {
		cfg.MaxMatchAttempts = *s.MaxMatchAttempts
	}
	if s.RequireExactContact != nil {
		cfg.RequireExactContact = *s.RequireExactContact
	}
	if s.VolumeThreshold != nil {
		cfg.VolumeThreshold = *s.VolumeThreshold
	}
	if s.MinScore != nil {
		cfg.MinScore = *s.MinScore
	}
	if s.PinClearance != nil {
		cfg.PinClearance = *s.PinClearance
	}
	return cfg
}

// Scene is the top-level structure produced by script evaluation. Parts
// keep definition order.
type Scene struct {
	Parts    []Part   `json:"parts"`
	Steps    []Step   `json:"steps"`
	Settings Settings `json:"settings"`

	index map[string]int
}

// New creates an empty Scene.
func New() *Scene {
	return &Scene{index: make(map[string]int)}
}

// AddPart appends p. Names must be unique.
func (s *Scene) AddPart(p Part) error {
	if s.index == nil {
		s.reindex()
	}
	if _, dup := s.index[p.Name]; dup {
		return fmt.Errorf("part %q already defined", p.Name)
	}
	s.index[p.Name] = len(s.Parts)
	s.Parts = append(s.Parts, p)
	return nil
}

// AddStep appends an assembly step. References are checked by Validate.
func (s *Scene) AddStep(fixed, moving string, line int) {
	s.Steps = append(s.Steps, Step{Fixed: fixed, Moving: moving, Line: line})
}

// Lookup returns the part with the given name, or nil.
func (s *Scene) Lookup(name string) *Part {
	if s.index == nil {
		s.reindex()
	}
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return &s.Parts[i]
}

// PartCount returns the number of parts.
func (s *Scene) PartCount() int {
	return len(s.Parts)
}

func (s *Scene) reindex() {
	s.index = make(map[string]int, len(s.Parts))
	for i, p := range s.Parts {
		if _, dup := s.index[p.Name]; !dup {
			s.index[p.Name] = i
		}
	}
}
