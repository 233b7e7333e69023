package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// placedSDF3 applies a rigid placement to an SDF3. Rigid motions preserve
// distance, so evaluating the body at the inverse-mapped point is exact.
type placedSDF3 struct {
	body sdf.SDF3
	inv  geom.Transform
	bb   sdf.Box3
}

func place(body sdf.SDF3, t geom.Transform) *placedSDF3 {
	box := toBox(body.BoundingBox()).Transform(t)
	return &placedSDF3{
		body: body,
		inv:  t.Inverse(),
		bb:   sdf.Box3{Min: vec(box.Min), Max: vec(box.Max)},
	}
}

// Evaluate returns the signed distance at p.
func (s *placedSDF3) Evaluate(p v3.Vec) float64 {
	return s.body.Evaluate(vec(s.inv.Apply(unvec(p))))
}

// BoundingBox returns the world bounding box.
func (s *placedSDF3) BoundingBox() sdf.Box3 {
	return s.bb
}

// clippedSDF3 narrows the bounding box reported for an SDF3 whose surface
// is known to lie within bb.
type clippedSDF3 struct {
	sdf.SDF3
	bb sdf.Box3
}

// BoundingBox returns the clipped box.
func (s *clippedSDF3) BoundingBox() sdf.Box3 {
	return s.bb
}

// Intersect computes the boolean intersection of two placed shapes. The
// search is confined to the overlap of their world bounding boxes. Shapes
// that neither overlap nor bring opposing surfaces within tolerance of each
// other yield a nil shape; surfaces in contact without overlap yield a shape
// of zero volume.
func (k *SdfxKernel) Intersect(a kernel.Shape, pa geom.Transform, b kernel.Shape, pb geom.Transform, tolerance float64) (out kernel.Shape, err error) {
	partA, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	partB, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("sdfx: intersection panicked: %v", r)
		}
	}()

	wa := place(partA.s, pa)
	wb := place(partB.s, pb)
	overlap := toBox(wa.BoundingBox()).Intersection(toBox(wb.BoundingBox()))
	size := overlap.Size()
	if overlap.Empty() || size[0] <= 0 || size[1] <= 0 || size[2] <= 0 {
		return nil, nil
	}

	g := k.integrator(overlap, tolerance, wa, wb)
	g.visit(overlap)
	k.log.Debug("intersected shapes",
		zap.Float64("overlapBoxVolume", overlap.Volume()),
		zap.Float64("volume", g.volume),
		zap.Int("cells", g.cells),
		zap.Bool("contact", g.contact))
	if g.volume <= 0 && !g.contact {
		return nil, nil
	}
	body := &clippedSDF3{
		SDF3: sdf.Intersect3D(wa, wb),
		bb:   sdf.Box3{Min: vec(overlap.Min), Max: vec(overlap.Max)},
	}
	return &part{s: body, prim: primDerived, volume: math.Max(g.volume, 0)}, nil
}

// sampleVolume integrates the interior of s over box.
func (k *SdfxKernel) sampleVolume(s sdf.SDF3, box geom.Box) float64 {
	if box.Empty() || box.Volume() <= 0 {
		return 0
	}
	g := k.integrator(box, 0, s)
	g.visit(box)
	return g.volume
}

// integrator measures the common interior of one or two distance fields
// over an octree. A cell whose centre lies further from every surface than
// its half diagonal is wholly inside or outside and is not split. Cells cut
// by a surface are split until their longest edge reaches the leaf size; a
// leaf takes the fraction of its volume predicted by the local surface
// planes, so interference thinner than a leaf is still measured.
type integrator struct {
	fields    []sdf.SDF3
	leaf      float64
	tolerance float64

	volume  float64
	cells   int
	contact bool
}

// integrator returns an integrator over box. Leaves are no finer than the
// tolerance and no coarser than the longest overlap edge over volumeCells.
func (k *SdfxKernel) integrator(box geom.Box, tolerance float64, fields ...sdf.SDF3) *integrator {
	leaf := maxEdge(box.Size()) / float64(k.volumeCells)
	if tolerance > leaf {
		leaf = tolerance
	}
	return &integrator{fields: fields, leaf: leaf, tolerance: tolerance}
}

func (g *integrator) visit(box geom.Box) {
	g.cells++
	c := box.Center()
	size := box.Size()
	half := size.Len() / 2

	d := make([]float64, len(g.fields))
	inside := true
	for i, f := range g.fields {
		d[i] = f.Evaluate(vec(c))
		if d[i] >= half {
			return
		}
		inside = inside && d[i] <= -half
	}
	if inside {
		g.volume += box.Volume()
		return
	}
	if maxEdge(size) <= g.leaf {
		g.volume += box.Volume() * g.fraction(c, size, d)
		return
	}

	// Split every axis longer than a leaf.
	var cuts [3][]float64
	for i := 0; i < 3; i++ {
		if size[i] > g.leaf {
			cuts[i] = []float64{box.Min[i], c[i], box.Max[i]}
		} else {
			cuts[i] = []float64{box.Min[i], box.Max[i]}
		}
	}
	for x := 1; x < len(cuts[0]); x++ {
		for y := 1; y < len(cuts[1]); y++ {
			for z := 1; z < len(cuts[2]); z++ {
				g.visit(geom.Box{
					Min: geom.Vec3{cuts[0][x-1], cuts[1][y-1], cuts[2][z-1]},
					Max: geom.Vec3{cuts[0][x], cuts[1][y], cuts[2][z]},
				})
			}
		}
	}
}

// fraction estimates the share of a leaf lying inside every field, treating
// each surface that cuts the leaf as a plane through its distance and
// gradient at the centre.
func (g *integrator) fraction(c geom.Vec3, size geom.Vec3, d []float64) float64 {
	half := size.Len() / 2
	if len(d) == 1 {
		n := gradient(g.fields[0], c, size)
		return cut(d[0], extent(n, size))
	}

	da, db := d[0], d[1]
	switch {
	case da <= -half:
		return cut(db, extent(gradient(g.fields[1], c, size), size))
	case db <= -half:
		return cut(da, extent(gradient(g.fields[0], c, size), size))
	}
	na := gradient(g.fields[0], c, size)
	nb := gradient(g.fields[1], c, size)
	if na.Dot(nb) >= 0 {
		// Surfaces facing the same way: the inner one bounds both.
		return math.Min(cut(da, extent(na, size)), cut(db, extent(nb, size)))
	}
	// Opposing surfaces bound a slab whose thickness is -(da+db).
	if da+db <= g.tolerance {
		g.contact = true
	}
	w := (extent(na, size) + extent(nb, size)) / 2
	return math.Max(0, cut(da, w)+cut(db, w)-1)
}

// cut returns the share of a cell of width w along the surface normal that
// lies behind a plane at signed distance d from its centre.
func cut(d, w float64) float64 {
	if w <= 0 {
		if d < 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, math.Min(1, 0.5-d/w))
}

// extent is the width of a box of the given size measured along unit n.
func extent(n, size geom.Vec3) float64 {
	return math.Abs(n[0])*size[0] + math.Abs(n[1])*size[1] + math.Abs(n[2])*size[2]
}

// gradient approximates the unit gradient of s at c by central differences
// scaled to the cell. A flat field yields the zero vector.
func gradient(s sdf.SDF3, c geom.Vec3, size geom.Vec3) geom.Vec3 {
	h := maxEdge(size) / 16
	var n geom.Vec3
	for i := 0; i < 3; i++ {
		p, m := c, c
		p[i] += h
		m[i] -= h
		n[i] = s.Evaluate(vec(p)) - s.Evaluate(vec(m))
	}
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return n
}

func maxEdge(size geom.Vec3) float64 {
	return math.Max(size[0], math.Max(size[1], size[2]))
}
