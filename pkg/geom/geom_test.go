package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformApplyAndCompose(t *testing.T) {
	rz := Rotation(math.Pi/2, Vec3{0, 0, 1})
	move := Translation(Vec3{10, 0, 0})

	p := Vec3{1, 0, 0}
	assert.True(t, Near(rz.Apply(p), Vec3{0, 1, 0}, 1e-12))

	// move after rotate
	c := move.Compose(rz)
	assert.True(t, Near(c.Apply(p), Vec3{10, 1, 0}, 1e-12))

	// rotate after move
	c = rz.Compose(move)
	assert.True(t, Near(c.Apply(p), Vec3{0, 11, 0}, 1e-12))
}

func TestTransformInverse(t *testing.T) {
	tr := FromEulerDegrees(30, -45, 120, Vec3{3, -7, 11})
	p := Vec3{1.5, 2.5, -3.5}
	back := tr.Inverse().Apply(tr.Apply(p))
	assert.True(t, Near(back, p, 1e-9), "got %v", back)
	assert.True(t, tr.Compose(tr.Inverse()).ApproxEqual(Identity(), 1e-9))
}

func TestOrthonormal(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		want bool
	}{
		{"identity", Identity(), true},
		{"euler", FromEulerDegrees(10, 20, 30, Vec3{}), true},
		{"half turn", Rotation(math.Pi, Vec3{1, 1, 0}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tr.Orthonormal(OrthonormalEpsilon))
		})
	}

	bad := Identity()
	bad.Rotation.W = math.NaN()
	assert.False(t, bad.Orthonormal(OrthonormalEpsilon))
}

func TestEulerMatchesAxisRotation(t *testing.T) {
	a := FromEulerDegrees(0, 0, 90, Vec3{})
	b := Rotation(math.Pi/2, Vec3{0, 0, 1})
	assert.True(t, a.ApproxEqual(b, 1e-12))
}

func TestPerpendicular(t *testing.T) {
	for _, v := range []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {-3, 2, 7}, {0, 0, -1}} {
		p := Perpendicular(v)
		assert.InDelta(t, 0, p.Dot(v.Normalize()), 1e-12, "v=%v", v)
		assert.InDelta(t, 1, p.Len(), 1e-12)
		assert.Equal(t, p, Perpendicular(v), "deterministic")
	}
}

func TestBoxIntersectsAndDistance(t *testing.T) {
	a := Box{Min: Vec3{0, 0, 0}, Max: Vec3{10, 10, 10}}
	touching := Box{Min: Vec3{10, 0, 0}, Max: Vec3{20, 10, 10}}
	far := Box{Min: Vec3{13, 14, 0}, Max: Vec3{20, 20, 10}}

	assert.True(t, a.Intersects(touching))
	assert.Equal(t, 0.0, a.Distance(touching))
	assert.Equal(t, 0.0, a.Intersection(touching).Volume())

	assert.False(t, a.Intersects(far))
	assert.InDelta(t, 5.0, a.Distance(far), 1e-12)
	assert.False(t, a.Intersects(EmptyBox()))
}

func TestBoxTransform(t *testing.T) {
	b := Box{Min: Vec3{0, 0, 0}, Max: Vec3{100, 10, 10}}
	r := b.Transform(Rotation(math.Pi/2, Vec3{0, 0, 1}))
	size := r.Size()
	assert.InDelta(t, 10, size[0], 1e-9)
	assert.InDelta(t, 100, size[1], 1e-9)
	assert.InDelta(t, 10, size[2], 1e-9)
}
