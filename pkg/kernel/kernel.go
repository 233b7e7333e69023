// Package kernel defines the geometry accessor consumed by the assembly
// engine. A backend (sdfx) builds shapes and answers topology, bounding,
// boolean and volume queries behind this interface, so the engine never
// depends on a particular modelling library.
package kernel

import (
	"fmt"

	"github.com/chazu/joinery/pkg/geom"
)

// Shape is an opaque, immutable handle to a kernel solid in its native
// coordinates. Implementations wrap their internal representation.
type Shape interface {
	// BoundingBox returns the native axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// SurfaceType classifies a face's underlying surface.
type SurfaceType int

const (
	SurfaceOther SurfaceType = iota
	SurfacePlane
	SurfaceCylinder
	SurfaceSphere
	SurfaceCone
)

var surfaceNames = map[SurfaceType]string{
	SurfaceOther:    "other",
	SurfacePlane:    "plane",
	SurfaceCylinder: "cylinder",
	SurfaceSphere:   "sphere",
	SurfaceCone:     "cone",
}

func (s SurfaceType) String() string {
	if n, ok := surfaceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("surface(%d)", int(s))
}

// CurveType classifies an edge's underlying curve.
type CurveType int

const (
	CurveOther CurveType = iota
	CurveLine
	CurveCircle
)

func (c CurveType) String() string {
	switch c {
	case CurveLine:
		return "line"
	case CurveCircle:
		return "circle"
	default:
		return "other"
	}
}

// Face describes one bounded face. Which fields are meaningful depends on
// Surface; all values are in the shape's native coordinates.
type Face struct {
	Index   int
	Surface SurfaceType

	// Plane: centroid of the bounded face and outward unit normal.
	Centroid geom.Vec3
	Normal   geom.Vec3
	Area     float64
	// Diameter is the bounding diameter of the face.
	Diameter float64

	// Cylinder/sphere/cone: a point on the axis (or the centre) and the unit axis.
	AxisOrigin geom.Vec3
	Axis       geom.Vec3
	Radius     float64
	Length     float64
	// Reversed marks a cylinder whose material lies outside the surface (a bore).
	Reversed bool

	// RefDir is a unit vector perpendicular to Normal/Axis fixing the
	// angular origin of the face's parameterisation.
	RefDir geom.Vec3
}

// Edge describes one bounded edge in native coordinates.
type Edge struct {
	Index int
	Curve CurveType

	// Line endpoints.
	Start, End geom.Vec3

	// Circle centre, unit plane normal, radius and angular origin.
	Center geom.Vec3
	Normal geom.Vec3
	Radius float64
	RefDir geom.Vec3

	Length float64
}

// Kernel is the geometry accessor. Implementations must be deterministic and
// free of side effects; the engine may call them from several goroutines.
type Kernel interface {
	// Faces lists the shape's bounded faces.
	Faces(s Shape) ([]Face, error)
	// Edges lists the shape's bounded edges.
	Edges(s Shape) ([]Edge, error)
	// BoundingVolume returns the world bounding box of s under placement.
	BoundingVolume(s Shape, placement geom.Transform) (geom.Box, error)
	// Intersect computes the boolean intersection of two placed shapes in
	// world coordinates, resolving interference down to tolerance. It returns
	// a nil Shape when the intersection is empty and the shapes are not in
	// contact; surfaces touching within tolerance give a zero-volume Shape.
	Intersect(a Shape, pa geom.Transform, b Shape, pb geom.Transform, tolerance float64) (Shape, error)
	// Volume returns the enclosed volume of s.
	Volume(s Shape) (float64, error)
	// ToMesh converts a shape to a triangle mesh.
	ToMesh(s Shape) (*Mesh, error)
}

// BoreSpec describes a through-hole drilled into a box along one of its
// principal axes. U and V locate the hole in the two remaining coordinates,
// taken in X, Y, Z order (a Z bore is located by X and Y).
type BoreSpec struct {
	Axis   int // 0=X, 1=Y, 2=Z
	U, V   float64
	Radius float64
}

// Modeler builds primitive shapes.
type Modeler interface {
	// Box creates a box with its minimum corner at the origin.
	Box(x, y, z float64) (Shape, error)
	// Cylinder creates a cylinder centred on the origin along Z.
	Cylinder(height, radius float64) (Shape, error)
	// Sphere creates a sphere centred on the origin.
	Sphere(radius float64) (Shape, error)
	// Bore drills a through-hole into a box shape.
	Bore(s Shape, b BoreSpec) (Shape, error)
}
