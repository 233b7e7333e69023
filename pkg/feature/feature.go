// Package feature derives candidate mating features from a solid's faces
// and edges: planar faces, cylindrical bores and shafts, and circular edges.
package feature

import (
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/geom"
)

// Kind is the closed set of mating feature kinds.
type Kind int

const (
	Planar Kind = iota + 1
	Cylindrical
	Circular
)

func (k Kind) String() string {
	switch k {
	case Planar:
		return "planar"
	case Cylindrical:
		return "cylindrical"
	case Circular:
		return "circular"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Axial reports whether features of this kind carry a radius and an axis.
func (k Kind) Axial() (bool, error) {
	switch k {
	case Planar:
		return false, nil
	case Cylindrical, Circular:
		return true, nil
	default:
		return false, errors.New(errors.IllFormedFeature, "unknown feature kind %d", int(k))
	}
}

// Entity names the topological entity a feature came from.
type Entity string

const (
	EntityFace Entity = "face"
	EntityEdge Entity = "edge"
)

// Topology identifies the source face or edge within its solid.
type Topology struct {
	Entity Entity `json:"entity"`
	Index  int    `json:"index"`
}

func (t Topology) String() string {
	return fmt.Sprintf("%s:%d", t.Entity, t.Index)
}

// Feature is a world-space mating candidate. Axis is the outward normal for
// planar faces, the cylinder axis, or the circle's plane normal.
type Feature struct {
	Kind   Kind      `json:"kind"`
	Anchor geom.Vec3 `json:"anchor"`
	Axis   geom.Vec3 `json:"axis"`
	// Radius is set only for cylindrical and circular features.
	Radius float64 `json:"radius,omitempty"`
	Extent float64 `json:"extent"`
	// Ref is a unit vector perpendicular to Axis fixing the angular origin.
	Ref geom.Vec3 `json:"ref"`
	// Concave marks a bore (material outside the cylinder).
	Concave  bool     `json:"concave,omitempty"`
	SolidID  string   `json:"solidId"`
	Topology Topology `json:"topology"`
}

// unitEpsilon bounds how far Axis may stray from unit length.
const unitEpsilon = 1e-6

// Validate checks the feature's invariants and reports IllFormedFeature.
func (f Feature) Validate() error {
	axial, err := f.Kind.Axial()
	if err != nil {
		return err
	}
	if !geom.Finite(f.Anchor) {
		return errors.New(errors.IllFormedFeature, "%s anchor is not finite", f.Topology)
	}
	if !geom.Finite(f.Axis) || math.Abs(f.Axis.Len()-1) > unitEpsilon {
		return errors.New(errors.IllFormedFeature, "%s axis %v is not unit length", f.Topology, f.Axis)
	}
	switch {
	case axial && !(f.Radius > 0):
		return errors.New(errors.IllFormedFeature, "%s %s feature needs a positive radius", f.Topology, f.Kind)
	case !axial && f.Radius != 0:
		return errors.New(errors.IllFormedFeature, "%s planar feature carries a radius", f.Topology)
	}
	return nil
}

// Size is the scalar compared between features of the same kind: the
// radius for axial kinds, the extent for planar faces.
func (f Feature) Size() float64 {
	if f.Kind == Planar {
		return f.Extent
	}
	return f.Radius
}

func (f Feature) String() string {
	if f.Kind == Planar {
		return fmt.Sprintf("%s %s at (%.3f, %.3f, %.3f) n=(%.3f, %.3f, %.3f)",
			f.Kind, f.Topology, f.Anchor[0], f.Anchor[1], f.Anchor[2], f.Axis[0], f.Axis[1], f.Axis[2])
	}
	return fmt.Sprintf("%s %s r=%.3f at (%.3f, %.3f, %.3f) axis=(%.3f, %.3f, %.3f)",
		f.Kind, f.Topology, f.Radius, f.Anchor[0], f.Anchor[1], f.Anchor[2], f.Axis[0], f.Axis[1], f.Axis[2])
}
