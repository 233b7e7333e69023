// Package sdfx implements the kernel.Kernel and kernel.Modeler interfaces
// using the github.com/deadsy/sdfx SDF-based CAD library.
//
// SDFs carry no boundary topology, so every primitive built here records
// analytic face and edge descriptors alongside its distance field. Queries
// that need the solid itself (intersection, volume, meshing) go through the
// distance field.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel  = (*SdfxKernel)(nil)
	_ kernel.Modeler = (*SdfxKernel)(nil)
)

const (
	// defaultMeshCells controls marching cubes resolution along the longest axis.
	defaultMeshCells = 64
	// defaultVolumeCells is the per-axis sample count used to integrate volume.
	defaultVolumeCells = 48
)

// primitive records what a part was built from so that Bore can validate
// its input and keep the analytic descriptors consistent.
type primitive int

const (
	primDerived primitive = iota
	primBox
	primCylinder
	primSphere
)

// part wraps an sdf.SDF3 together with its analytic topology.
type part struct {
	s      sdf.SDF3
	prim   primitive
	size   geom.Vec3 // box dimensions
	bores  []kernel.BoreSpec
	faces  []kernel.Face
	edges  []kernel.Edge
	volume float64 // analytic or sampled volume; negative when unknown
}

// BoundingBox returns the axis-aligned bounding box.
func (p *part) BoundingBox() (min, max [3]float64) {
	bb := p.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells   int
	volumeCells int
	log         *zap.Logger
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution used by ToMesh.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// WithVolumeCells sets the per-axis sample count used for volume integration.
func WithVolumeCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.volumeCells = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *SdfxKernel) {
		if l != nil {
			k.log = l
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{
		meshCells:   defaultMeshCells,
		volumeCells: defaultVolumeCells,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// unwrap extracts the part behind a kernel.Shape.
func unwrap(s kernel.Shape) (*part, error) {
	p, ok := s.(*part)
	if !ok || p == nil {
		return nil, fmt.Errorf("sdfx: shape %T was not built by this kernel", s)
	}
	return p, nil
}

func vec(v geom.Vec3) v3.Vec {
	return v3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func unvec(v v3.Vec) geom.Vec3 {
	return geom.Vec3{v.X, v.Y, v.Z}
}

func toBox(bb sdf.Box3) geom.Box {
	return geom.Box{Min: unvec(bb.Min), Max: unvec(bb.Max)}
}

// axisVec returns the unit vector along principal axis i scaled by sign.
func axisVec(i int, sign float64) geom.Vec3 {
	var v geom.Vec3
	v[i] = sign
	return v
}

// Box creates a box with the given dimensions. The resulting solid has its
// minimum corner at the origin (0,0,0) so that placement translations work
// intuitively: placing at (10 0 0) puts the box's corner at x=10.
// sdf.Box3D centers the box at the origin, so we translate by half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Shape, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("sdfx: box dimensions must be positive, got %gx%gx%g", x, y, z)
	}
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	// Shift from center-origin to min-corner-origin.
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	size := geom.Vec3{x, y, z}
	return &part{
		s:      sdf.Transform3D(s, m),
		prim:   primBox,
		size:   size,
		faces:  boxFaces(size),
		edges:  boxEdges(size),
		volume: x * y * z,
	}, nil
}

// boxFaces lists faces in -X, +X, -Y, +Y, -Z, +Z order.
func boxFaces(size geom.Vec3) []kernel.Face {
	faces := make([]kernel.Face, 0, 6)
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		for _, sign := range []float64{-1, 1} {
			c := size.Mul(0.5)
			if sign > 0 {
				c[i] = size[i]
			} else {
				c[i] = 0
			}
			faces = append(faces, kernel.Face{
				Index:    len(faces),
				Surface:  kernel.SurfacePlane,
				Centroid: c,
				Normal:   axisVec(i, sign),
				Area:     size[j] * size[k],
				Diameter: math.Hypot(size[j], size[k]),
				RefDir:   axisVec(j, 1),
			})
		}
	}
	return faces
}

// boxEdges lists the twelve straight edges, four per axis.
func boxEdges(size geom.Vec3) []kernel.Edge {
	edges := make([]kernel.Edge, 0, 12)
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		for _, cj := range []float64{0, size[j]} {
			for _, ck := range []float64{0, size[k]} {
				var a, b geom.Vec3
				a[j], a[k] = cj, ck
				b = a
				b[i] = size[i]
				edges = append(edges, kernel.Edge{
					Index:  len(edges),
					Curve:  kernel.CurveLine,
					Start:  a,
					End:    b,
					Length: size[i],
				})
			}
		}
	}
	return edges
}

// Cylinder creates a cylinder with the given height and radius, centred on
// the origin with its axis along +Z.
func (k *SdfxKernel) Cylinder(height, radius float64) (kernel.Shape, error) {
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("sdfx: cylinder height and radius must be positive, got h=%g r=%g", height, radius)
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	z := geom.Vec3{0, 0, 1}
	x := geom.Vec3{1, 0, 0}
	capArea := math.Pi * radius * radius
	faces := []kernel.Face{
		{
			Index:    0,
			Surface:  kernel.SurfaceCylinder,
			Centroid: geom.Vec3{},
			Axis:     z,
			Radius:   radius,
			Length:   height,
			Area:     2 * math.Pi * radius * height,
			Diameter: math.Hypot(height, 2*radius),
			RefDir:   x,
		},
		{
			Index:    1,
			Surface:  kernel.SurfacePlane,
			Centroid: geom.Vec3{0, 0, -height / 2},
			Normal:   z.Mul(-1),
			Area:     capArea,
			Diameter: 2 * radius,
			RefDir:   x,
		},
		{
			Index:    2,
			Surface:  kernel.SurfacePlane,
			Centroid: geom.Vec3{0, 0, height / 2},
			Normal:   z,
			Area:     capArea,
			Diameter: 2 * radius,
			RefDir:   x,
		},
	}
	edges := []kernel.Edge{
		{Index: 0, Curve: kernel.CurveCircle, Center: geom.Vec3{0, 0, -height / 2}, Normal: z.Mul(-1), Radius: radius, RefDir: x, Length: 2 * math.Pi * radius},
		{Index: 1, Curve: kernel.CurveCircle, Center: geom.Vec3{0, 0, height / 2}, Normal: z, Radius: radius, RefDir: x, Length: 2 * math.Pi * radius},
		{Index: 2, Curve: kernel.CurveLine, Start: geom.Vec3{radius, 0, -height / 2}, End: geom.Vec3{radius, 0, height / 2}, Length: height},
	}
	return &part{
		s:      s,
		prim:   primCylinder,
		faces:  faces,
		edges:  edges,
		volume: capArea * height,
	}, nil
}

// Sphere creates a sphere centred on the origin.
func (k *SdfxKernel) Sphere(radius float64) (kernel.Shape, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("sdfx: sphere radius must be positive, got %g", radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	return &part{
		s:    s,
		prim: primSphere,
		faces: []kernel.Face{{
			Index:    0,
			Surface:  kernel.SurfaceSphere,
			Radius:   radius,
			Area:     4 * math.Pi * radius * radius,
			Diameter: 2 * radius,
		}},
		volume: 4.0 / 3.0 * math.Pi * radius * radius * radius,
	}, nil
}

// Faces returns the recorded faces of a primitive.
func (k *SdfxKernel) Faces(s kernel.Shape) ([]kernel.Face, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	out := make([]kernel.Face, len(p.faces))
	copy(out, p.faces)
	return out, nil
}

// Edges returns the recorded edges of a primitive.
func (k *SdfxKernel) Edges(s kernel.Shape) ([]kernel.Edge, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	out := make([]kernel.Edge, len(p.edges))
	copy(out, p.edges)
	return out, nil
}

// BoundingVolume returns the world bounding box of s under placement.
func (k *SdfxKernel) BoundingVolume(s kernel.Shape, placement geom.Transform) (geom.Box, error) {
	p, err := unwrap(s)
	if err != nil {
		return geom.Box{}, err
	}
	return toBox(p.s.BoundingBox()).Transform(placement), nil
}

// Volume returns the analytic volume of a primitive, or integrates the
// distance field for shapes without one.
func (k *SdfxKernel) Volume(s kernel.Shape) (float64, error) {
	p, err := unwrap(s)
	if err != nil {
		return 0, err
	}
	if p.volume >= 0 {
		return p.volume, nil
	}
	return k.sampleVolume(p.s, toBox(p.s.BoundingBox())), nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Shape) (mesh *kernel.Mesh, err error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			mesh, err = nil, fmt.Errorf("sdfx: marching cubes panicked: %v", r)
		}
	}()

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(p.s, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	k.log.Debug("meshed shape",
		zap.Int("triangles", numTri),
		zap.Int("cells", k.meshCells))

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
