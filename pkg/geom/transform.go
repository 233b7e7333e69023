// Package geom holds the small set of value types shared by the assembly
// pipeline: vectors, rigid transforms and axis-aligned boxes. Vector and
// quaternion arithmetic is delegated to mathgl's mgl64 package.
package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point or direction in millimetres.
type Vec3 = mgl64.Vec3

// OrthonormalEpsilon bounds the deviation of a rotation matrix from
// orthonormality (RᵀR = I, det R = +1).
const OrthonormalEpsilon = 1e-6

// Transform is a rigid motion: rotate about the origin, then translate.
type Transform struct {
	Rotation    mgl64.Quat `json:"rotation"`
	Translation Vec3       `json:"translation"`
}

// Identity returns the transform that leaves every point in place.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Translation returns a pure translation.
func Translation(v Vec3) Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Translation: v}
}

// Rotation returns a pure rotation of angle radians about axis.
func Rotation(angle float64, axis Vec3) Transform {
	return Transform{Rotation: mgl64.QuatRotate(angle, axis.Normalize())}
}

// FromEulerDegrees builds a rotation from X, Y, Z angles in degrees,
// applied in that order (R = Rz·Ry·Rx), followed by a translation.
func FromEulerDegrees(rx, ry, rz float64, at Vec3) Transform {
	q := mgl64.QuatRotate(mgl64.DegToRad(rz), Vec3{0, 0, 1}).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(ry), Vec3{0, 1, 0})).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(rx), Vec3{1, 0, 0}))
	return Transform{Rotation: q.Normalize(), Translation: at}
}

// Apply maps a point.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Rotation.Rotate(p).Add(t.Translation)
}

// Rotate maps a direction (no translation).
func (t Transform) Rotate(d Vec3) Vec3 {
	return t.Rotation.Rotate(d)
}

// Compose returns the transform that applies inner first, then t.
func (t Transform) Compose(inner Transform) Transform {
	return Transform{
		Rotation:    t.Rotation.Mul(inner.Rotation).Normalize(),
		Translation: t.Rotation.Rotate(inner.Translation).Add(t.Translation),
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Inverse()
	return Transform{Rotation: inv, Translation: inv.Rotate(t.Translation).Mul(-1)}
}

// Matrix returns the 3x3 rotation matrix.
func (t Transform) Matrix() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}

// Orthonormal reports whether the rotation part is a proper rotation within eps.
func (t Transform) Orthonormal(eps float64) bool {
	m := t.Matrix()
	if !finiteMat(m) {
		return false
	}
	if math.Abs(m.Det()-1) > eps {
		return false
	}
	return matNear(m.Transpose().Mul3(m), mgl64.Ident3(), eps)
}

// ApproxEqual compares two transforms by their action on the basis.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	return matNear(t.Matrix(), o.Matrix(), eps) && Near(t.Translation, o.Translation, eps)
}

// Near reports whether two points lie within eps of each other.
func Near(a, b Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

func matNear(a, b mgl64.Mat3, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func (t Transform) String() string {
	axis, angle := axisAngle(t.Rotation)
	return fmt.Sprintf("rot %.3f° about (%.3f, %.3f, %.3f), move (%.4f, %.4f, %.4f)",
		mgl64.RadToDeg(angle), axis[0], axis[1], axis[2],
		t.Translation[0], t.Translation[1], t.Translation[2])
}

func axisAngle(q mgl64.Quat) (Vec3, float64) {
	q = q.Normalize()
	w := mgl64.Clamp(q.W, -1, 1)
	angle := 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < 1e-12 {
		return Vec3{1, 0, 0}, 0
	}
	return q.V.Mul(1 / s), angle
}

func finiteMat(m mgl64.Mat3) bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Finite reports whether every component of v is a real number.
func Finite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Perpendicular returns a deterministic unit vector orthogonal to v.
// v must be non-zero.
func Perpendicular(v Vec3) Vec3 {
	v = v.Normalize()
	// Cross with the basis axis least aligned with v.
	ref := Vec3{1, 0, 0}
	if math.Abs(v[1]) < math.Abs(v[0]) && math.Abs(v[1]) <= math.Abs(v[2]) {
		ref = Vec3{0, 1, 0}
	} else if math.Abs(v[2]) < math.Abs(v[0]) && math.Abs(v[2]) < math.Abs(v[1]) {
		ref = Vec3{0, 0, 1}
	}
	return v.Cross(ref).Normalize()
}

// AngleBetween returns the angle in radians between two non-zero vectors.
func AngleBetween(a, b Vec3) float64 {
	d := a.Normalize().Dot(b.Normalize())
	return math.Acos(mgl64.Clamp(d, -1, 1))
}
