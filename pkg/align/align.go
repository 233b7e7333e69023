// Package align computes the rigid motion that brings a movable solid's
// feature into mating coincidence with a fixed solid's feature.
package align

import (
	"math"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/match"
	"github.com/go-gl/mathgl/mgl64"
)

// parallelEpsilon is the cross-product length below which two unit vectors
// are treated as parallel or antiparallel.
const parallelEpsilon = 1e-9

// Solve returns the transform, in world space, to apply on top of B's
// current placement. The rotation takes B's axis onto the negation of A's
// axis; for axial kinds a twist about that axis lines B's reference
// direction up with A's; a required flip adds a half turn about A's axis.
// The translation then carries B's anchor onto A's anchor.
func Solve(m match.Match) (geom.Transform, error) {
	a, b := m.A, m.B
	axisA, err := unitAxis(a)
	if err != nil {
		return geom.Transform{}, err
	}
	axisB, err := unitAxis(b)
	if err != nil {
		return geom.Transform{}, err
	}

	target := axisA.Mul(-1)
	r := minimalRotation(axisB, target, axisA)

	axial, err := a.Kind.Axial()
	if err != nil {
		return geom.Transform{}, err
	}
	if axial {
		r = twist(r, b.Ref, a.Ref, axisA).Mul(r).Normalize()
	}
	if m.RequiredFlip {
		r = mgl64.QuatRotate(math.Pi, axisA).Mul(r).Normalize()
	}

	t := geom.Transform{Rotation: r}
	t.Translation = a.Anchor.Sub(t.Apply(b.Anchor))

	if !t.Orthonormal(geom.OrthonormalEpsilon) || !geom.Finite(t.Translation) {
		return geom.Transform{}, errors.New(errors.IllFormedFeature,
			"alignment of %s onto %s is not a rigid motion", b.Topology, a.Topology)
	}
	return t, nil
}

// unitAxis validates a feature's anchor and axis and returns the unit axis.
func unitAxis(f feature.Feature) (geom.Vec3, error) {
	if !geom.Finite(f.Anchor) {
		return geom.Vec3{}, errors.New(errors.IllFormedFeature, "%s anchor is not finite", f.Topology)
	}
	l := f.Axis.Len()
	if !geom.Finite(f.Axis) || l < parallelEpsilon {
		return geom.Vec3{}, errors.New(errors.IllFormedFeature, "%s axis is degenerate", f.Topology)
	}
	return f.Axis.Mul(1 / l), nil
}

// minimalRotation rotates from onto to about their common perpendicular.
// When they are already antiparallel any perpendicular works; the one
// derived from fallback keeps the choice deterministic.
func minimalRotation(from, to, fallback geom.Vec3) mgl64.Quat {
	c := from.Cross(to)
	d := from.Dot(to)
	if c.Len() < parallelEpsilon {
		if d > 0 {
			return mgl64.QuatIdent()
		}
		return mgl64.QuatRotate(math.Pi, geom.Perpendicular(fallback))
	}
	// atan2 stays accurate near 0 and π where acos does not.
	return mgl64.QuatRotate(math.Atan2(c.Len(), d), c.Normalize())
}

// twist returns the rotation about axis that carries r·refB onto refA,
// both projected into the plane perpendicular to axis. Missing or
// degenerate references give no twist.
func twist(r mgl64.Quat, refB, refA, axis geom.Vec3) mgl64.Quat {
	from := project(r.Rotate(refB), axis)
	to := project(refA, axis)
	if from.Len() < parallelEpsilon || to.Len() < parallelEpsilon {
		return mgl64.QuatIdent()
	}
	from, to = from.Normalize(), to.Normalize()
	angle := math.Atan2(from.Cross(to).Dot(axis), from.Dot(to))
	return mgl64.QuatRotate(angle, axis)
}

func project(v, axis geom.Vec3) geom.Vec3 {
	return v.Sub(axis.Mul(v.Dot(axis)))
}

// Verify re-derives B's feature under t and checks that it coincides with
// A's: anchors within tolerance and axes antiparallel within angularTolerance.
func Verify(m match.Match, t geom.Transform, tolerance, angularTolerance float64) bool {
	anchor := t.Apply(m.B.Anchor)
	axis := t.Rotate(m.B.Axis)
	if !geom.Near(anchor, m.A.Anchor, tolerance) {
		return false
	}
	return geom.AngleBetween(axis, m.A.Axis.Mul(-1)) <= angularTolerance
}
