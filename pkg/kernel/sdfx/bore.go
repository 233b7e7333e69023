package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
)

// boreClearance extends the cutting cylinder past both faces so the
// difference never leaves a skin at the entry and exit planes.
const boreClearance = 1.0

// Bore drills a through-hole of the given radius into a box along one of
// its principal axes. The result gains a reversed cylindrical face and two
// circular rim edges; the entry and exit faces lose the hole's area.
func (k *SdfxKernel) Bore(s kernel.Shape, b kernel.BoreSpec) (kernel.Shape, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if p.prim != primBox {
		return nil, fmt.Errorf("sdfx: bore needs a box, not a derived or round shape")
	}
	if b.Axis < 0 || b.Axis > 2 {
		return nil, fmt.Errorf("sdfx: bore axis %d out of range", b.Axis)
	}
	if err := checkBore(p, b); err != nil {
		return nil, err
	}

	a := b.Axis
	j, kk := plane(a)
	size := p.size
	depth := size[a]

	cyl, err := sdf.Cylinder3D(depth+2*boreClearance, b.Radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	var center geom.Vec3
	center[a] = depth / 2
	center[j] = b.U
	center[kk] = b.V
	// Cylinder3D runs along Z; tip it onto X or Y as needed.
	m := sdf.Translate3d(vec(center))
	switch a {
	case 0:
		m = m.Mul(sdf.RotateY(math.Pi / 2))
	case 1:
		m = m.Mul(sdf.RotateX(math.Pi / 2))
	}
	body := sdf.Difference3D(p.s, sdf.Transform3D(cyl, m))

	holeArea := math.Pi * b.Radius * b.Radius
	faces := make([]kernel.Face, len(p.faces), len(p.faces)+1)
	copy(faces, p.faces)
	for _, fi := range []int{2 * a, 2*a + 1} {
		f := faces[fi]
		hole := center
		hole[a] = f.Centroid[a]
		remaining := f.Area - holeArea
		f.Centroid = f.Centroid.Mul(f.Area).Sub(hole.Mul(holeArea)).Mul(1 / remaining)
		f.Area = remaining
		faces[fi] = f
	}

	ref := axisVec(j, 1)
	origin := center
	origin[a] = 0
	faces = append(faces, kernel.Face{
		Index:      len(faces),
		Surface:    kernel.SurfaceCylinder,
		Centroid:   center,
		AxisOrigin: origin,
		Axis:       axisVec(a, 1),
		Radius:     b.Radius,
		Length:     depth,
		Reversed:   true,
		Area:       2 * math.Pi * b.Radius * depth,
		Diameter:   math.Hypot(depth, 2*b.Radius),
		RefDir:     ref,
	})

	edges := make([]kernel.Edge, len(p.edges), len(p.edges)+2)
	copy(edges, p.edges)
	for _, sign := range []float64{-1, 1} {
		c := center
		if sign > 0 {
			c[a] = depth
		} else {
			c[a] = 0
		}
		edges = append(edges, kernel.Edge{
			Index:  len(edges),
			Curve:  kernel.CurveCircle,
			Center: c,
			Normal: axisVec(a, sign),
			Radius: b.Radius,
			RefDir: ref,
			Length: 2 * math.Pi * b.Radius,
		})
	}

	bores := append(append([]kernel.BoreSpec(nil), p.bores...), b)
	return &part{
		s:      body,
		prim:   primBox,
		size:   size,
		bores:  bores,
		faces:  faces,
		edges:  edges,
		volume: p.volume - holeArea*depth,
	}, nil
}

// plane returns the two axes other than a, in increasing order.
func plane(a int) (int, int) {
	switch a {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// checkBore rejects holes that break out of the box or cut into an existing
// hole, either of which would invalidate the analytic descriptors.
func checkBore(p *part, b kernel.BoreSpec) error {
	if b.Radius <= 0 {
		return fmt.Errorf("sdfx: bore radius must be positive, got %g", b.Radius)
	}
	j, k := plane(b.Axis)
	if b.U-b.Radius <= 0 || b.U+b.Radius >= p.size[j] ||
		b.V-b.Radius <= 0 || b.V+b.Radius >= p.size[k] {
		return fmt.Errorf("sdfx: bore r=%g at (%g, %g) does not fit inside the %gx%g face",
			b.Radius, b.U, b.V, p.size[j], p.size[k])
	}
	for _, o := range p.bores {
		if bored(b).crosses(bored(o)) {
			return fmt.Errorf("sdfx: bore r=%g at (%g, %g) intersects an existing bore", b.Radius, b.U, b.V)
		}
	}
	return nil
}

// boredHole is a bore expressed as fixed coordinates on its two cross axes.
type boredHole struct {
	axis   int
	at     geom.Vec3 // components on the cross axes are set
	radius float64
}

func bored(b kernel.BoreSpec) boredHole {
	j, k := plane(b.Axis)
	var at geom.Vec3
	at[j], at[k] = b.U, b.V
	return boredHole{axis: b.Axis, at: at, radius: b.Radius}
}

func (h boredHole) crosses(o boredHole) bool {
	reach := h.radius + o.radius
	if h.axis == o.axis {
		j, k := plane(h.axis)
		return math.Hypot(h.at[j]-o.at[j], h.at[k]-o.at[k]) < reach
	}
	// Axes differ: both holes fix the third axis.
	third := 3 - h.axis - o.axis
	return math.Abs(h.at[third]-o.at[third]) < reach
}
