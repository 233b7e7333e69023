package feature

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/solid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// degenerateLength is the shortest axis or normal accepted from the kernel.
const degenerateLength = 1e-9

// Source produces features for a solid view.
type Source interface {
	Extract(v solid.View, tolerance float64) ([]Feature, error)
}

// Extractor scans kernel topology for mating features.
type Extractor struct {
	kernel kernel.Kernel
	log    *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExtractor returns an Extractor reading topology from k.
func NewExtractor(k kernel.Kernel, opts ...Option) *Extractor {
	e := &Extractor{kernel: k, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the deduplicated world-space features of v. Faces come
// first in kernel order, then edges. A solid without any eligible entity
// yields NoFeaturesFound; kernel failures yield GeometryKernelFailure.
func (e *Extractor) Extract(v solid.View, tolerance float64) (out []Feature, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.New(errors.GeometryKernelFailure, "feature extraction for %s panicked: %v", v.Name, r)
		}
	}()

	faces, err := e.kernel.Faces(v.Shape)
	if err != nil {
		return nil, errors.Wrap(err, errors.GeometryKernelFailure, "faces of %s", v.Name)
	}
	edges, err := e.kernel.Edges(v.Shape)
	if err != nil {
		return nil, errors.Wrap(err, errors.GeometryKernelFailure, "edges of %s", v.Name)
	}
	bounds, err := e.kernel.BoundingVolume(v.Shape, v.Placement)
	if err != nil {
		return nil, errors.Wrap(err, errors.GeometryKernelFailure, "bounding volume of %s", v.Name)
	}
	centroid := bounds.Center()

	var found []Feature
	for _, f := range faces {
		ft, ok := e.fromFace(v, f, centroid)
		if ok {
			found = append(found, ft)
		}
	}
	for _, ed := range edges {
		ft, ok := e.fromEdge(v, ed)
		if ok {
			found = append(found, ft)
		}
	}

	out = Dedup(found, tolerance)
	if len(out) == 0 {
		return nil, errors.New(errors.NoFeaturesFound, "%s has no planar, cylindrical or circular features", v.Name).
			WithDetail("%d faces, %d edges scanned", len(faces), len(edges))
	}
	e.log.Debug("extracted features",
		zap.String("solid", v.Name),
		zap.Int("faces", len(faces)),
		zap.Int("edges", len(edges)),
		zap.Int("features", len(out)),
		zap.Int("duplicates", len(found)-len(out)))
	return out, nil
}

func (e *Extractor) fromFace(v solid.View, f kernel.Face, centroid geom.Vec3) (Feature, bool) {
	topo := Topology{Entity: EntityFace, Index: f.Index}
	pl := v.Placement
	switch f.Surface {
	case kernel.SurfacePlane:
		n, ok := e.unit(v, topo, pl.Rotate(f.Normal))
		if !ok {
			return Feature{}, false
		}
		return Feature{
			Kind:     Planar,
			Anchor:   pl.Apply(f.Centroid),
			Axis:     n,
			Extent:   f.Diameter,
			Ref:      refFor(n, pl.Rotate(f.RefDir)),
			SolidID:  v.ID,
			Topology: topo,
		}, true
	case kernel.SurfaceCylinder:
		a, ok := e.unit(v, topo, pl.Rotate(f.Axis))
		if !ok {
			return Feature{}, false
		}
		// Anchor on the axis, nearest the solid's centroid.
		p0 := pl.Apply(f.AxisOrigin)
		anchor := p0.Add(a.Mul(centroid.Sub(p0).Dot(a)))
		return Feature{
			Kind:     Cylindrical,
			Anchor:   anchor,
			Axis:     a,
			Radius:   f.Radius,
			Extent:   f.Length,
			Ref:      refFor(a, pl.Rotate(f.RefDir)),
			Concave:  f.Reversed,
			SolidID:  v.ID,
			Topology: topo,
		}, true
	default:
		return Feature{}, false
	}
}

func (e *Extractor) fromEdge(v solid.View, ed kernel.Edge) (Feature, bool) {
	if ed.Curve != kernel.CurveCircle {
		return Feature{}, false
	}
	topo := Topology{Entity: EntityEdge, Index: ed.Index}
	pl := v.Placement
	n, ok := e.unit(v, topo, pl.Rotate(ed.Normal))
	if !ok {
		return Feature{}, false
	}
	return Feature{
		Kind:     Circular,
		Anchor:   pl.Apply(ed.Center),
		Axis:     n,
		Radius:   ed.Radius,
		Extent:   2 * math.Pi * ed.Radius,
		Ref:      refFor(n, pl.Rotate(ed.RefDir)),
		SolidID:  v.ID,
		Topology: topo,
	}, true
}

// unit normalizes d, dropping entities whose direction is degenerate.
func (e *Extractor) unit(v solid.View, topo Topology, d geom.Vec3) (geom.Vec3, bool) {
	l := d.Len()
	if !geom.Finite(d) || l < degenerateLength {
		e.log.Warn("skipping entity with degenerate direction",
			zap.String("solid", v.Name),
			zap.String("entity", topo.String()))
		return geom.Vec3{}, false
	}
	return d.Mul(1 / l), true
}

// refFor projects ref onto the plane perpendicular to axis, falling back
// to a deterministic perpendicular when ref is missing or parallel.
func refFor(axis, ref geom.Vec3) geom.Vec3 {
	p := ref.Sub(axis.Mul(ref.Dot(axis)))
	if p.Len() < degenerateLength {
		return geom.Perpendicular(axis)
	}
	return p.Normalize()
}

// Dedup collapses near-identical features: same kind, anchors and axes
// within tolerance and radii within tolerance. The survivor keeps the
// position of the first occurrence and the larger extent wins.
func Dedup(in []Feature, tolerance float64) []Feature {
	out := make([]Feature, 0, len(in))
outer:
	for _, f := range in {
		for i, g := range out {
			if duplicate(f, g, tolerance) {
				if f.Extent > g.Extent {
					out[i] = f
				}
				continue outer
			}
		}
		out = append(out, f)
	}
	return out
}

func duplicate(a, b Feature, tol float64) bool {
	return a.Kind == b.Kind &&
		geom.Near(a.Anchor, b.Anchor, tol) &&
		geom.Near(a.Axis, b.Axis, tol) &&
		math.Abs(a.Radius-b.Radius) <= tol
}

// ExtractPair extracts both solids concurrently; they share no mutable state.
func ExtractPair(ctx context.Context, src Source, a, b solid.View, tolerance float64) (fa, fb []Feature, err error) {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fa, err = src.Extract(a, tolerance)
		return err
	})
	g.Go(func() error {
		var err error
		fb, err = src.Extract(b, tolerance)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extract features: %w", err)
	}
	return fa, fb, nil
}
