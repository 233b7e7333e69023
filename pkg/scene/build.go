package scene

import (
	"fmt"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/solid"
)

// Built holds the solids of a scene and the assembly steps between them.
type Built struct {
	Solids []*solid.Solid
	Steps  []assembly.Step

	byName map[string]*solid.Solid
}

// Solid returns the built solid with the given part name, or nil.
func (b *Built) Solid(name string) *solid.Solid {
	return b.byName[name]
}

// Views snapshots every solid in part order.
func (b *Built) Views() []solid.View {
	views := make([]solid.View, len(b.Solids))
	for i, s := range b.Solids {
		views[i] = s.View()
	}
	return views
}

// Build creates a solid for every part and resolves the steps. The scene
// must have passed Validate without errors.
func Build(s *Scene, m kernel.Modeler) (*Built, error) {
	out := &Built{byName: make(map[string]*solid.Solid, len(s.Parts))}
	for _, p := range s.Parts {
		shape, err := buildShape(p, m)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", p.Name, err)
		}
		sol := solid.New(shape, solid.WithName(p.Name), solid.WithPlacement(p.Placement))
		out.Solids = append(out.Solids, sol)
		out.byName[p.Name] = sol
	}
	for _, st := range s.Steps {
		fixed, moving := out.byName[st.Fixed], out.byName[st.Moving]
		if fixed == nil || moving == nil {
			return nil, fmt.Errorf("step %s <- %s references an unknown part", st.Fixed, st.Moving)
		}
		out.Steps = append(out.Steps, assembly.Step{Fixed: fixed, Moving: moving})
	}
	return out, nil
}

func buildShape(p Part, m kernel.Modeler) (kernel.Shape, error) {
	switch p.Kind {
	case PrimBox:
		shape, err := m.Box(p.Size[0], p.Size[1], p.Size[2])
		if err != nil {
			return nil, err
		}
		for i, b := range p.Bores {
			shape, err = m.Bore(shape, kernel.BoreSpec{Axis: b.Axis, U: b.U, V: b.V, Radius: b.Radius})
			if err != nil {
				return nil, fmt.Errorf("bore %d: %w", i, err)
			}
		}
		return shape, nil
	case PrimCylinder:
		return m.Cylinder(p.Height, p.Radius)
	case PrimSphere:
		return m.Sphere(p.Radius)
	default:
		return nil, fmt.Errorf("unknown primitive kind %v", p.Kind)
	}
}
