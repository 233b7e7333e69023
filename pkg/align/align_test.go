package align

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/kernel/sdfx"
	"github.com/chazu/joinery/pkg/match"
	"github.com/chazu/joinery/pkg/solid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 0.01

func randUnit(r *rand.Rand) geom.Vec3 {
	for {
		v := geom.Vec3{r.Float64()*2 - 1, r.Float64()*2 - 1, r.Float64()*2 - 1}
		if l := v.Len(); l > 0.1 && l <= 1 {
			return v.Normalize()
		}
	}
}

func TestSolveProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	kinds := []feature.Kind{feature.Planar, feature.Cylindrical, feature.Circular}
	for i := 0; i < 500; i++ {
		kind := kinds[i%3]
		a := feature.Feature{Kind: kind, Anchor: randUnit(r).Mul(50), Axis: randUnit(r)}
		b := feature.Feature{Kind: kind, Anchor: randUnit(r).Mul(50), Axis: randUnit(r)}
		if kind != feature.Planar {
			a.Radius, b.Radius = 3, 3
			a.Ref, b.Ref = geom.Perpendicular(a.Axis), geom.Perpendicular(b.Axis)
		}
		m := match.Match{A: a, B: b, RequiredFlip: kind != feature.Planar && a.Axis.Dot(b.Axis) > 0}

		tr, err := Solve(m)
		require.NoError(t, err)
		assert.InDelta(t, 1, tr.Matrix().Det(), 1e-6)
		assert.True(t, tr.Orthonormal(geom.OrthonormalEpsilon))
		assert.True(t, geom.Near(tr.Apply(b.Anchor), a.Anchor, 1e-9), "anchor %v -> %v", tr.Apply(b.Anchor), a.Anchor)
		assert.True(t, geom.Near(tr.Rotate(b.Axis), a.Axis.Mul(-1), 1e-9), "axis")
		assert.True(t, Verify(m, tr, tol, match.DefaultAngularTolerance))
	}
}

func TestSolveAlreadyAntiparallel(t *testing.T) {
	a := feature.Feature{Kind: feature.Planar, Anchor: geom.Vec3{0, 0, 10}, Axis: geom.Vec3{0, 0, 1}}
	b := feature.Feature{Kind: feature.Planar, Anchor: geom.Vec3{3, 4, 0}, Axis: geom.Vec3{0, 0, -1}}
	tr, err := Solve(match.Match{A: a, B: b})
	require.NoError(t, err)
	assert.True(t, tr.Matrix().ApproxEqualThreshold(geom.Identity().Matrix(), 1e-12))
	assert.True(t, geom.Near(tr.Translation, geom.Vec3{-3, -4, 10}, 1e-12))
}

func TestSolveParallelUsesHalfTurn(t *testing.T) {
	a := feature.Feature{Kind: feature.Planar, Anchor: geom.Vec3{}, Axis: geom.Vec3{1, 0, 0}}
	b := feature.Feature{Kind: feature.Planar, Anchor: geom.Vec3{}, Axis: geom.Vec3{1, 0, 0}}
	tr, err := Solve(match.Match{A: a, B: b})
	require.NoError(t, err)
	assert.True(t, geom.Near(tr.Rotate(b.Axis), geom.Vec3{-1, 0, 0}, 1e-12))

	again, err := Solve(match.Match{A: a, B: b})
	require.NoError(t, err)
	assert.Equal(t, tr, again, "degenerate case is deterministic")
}

func TestSolveFlipAddsHalfTurnAboutA(t *testing.T) {
	z := geom.Vec3{0, 0, 1}
	x := geom.Vec3{1, 0, 0}
	a := feature.Feature{Kind: feature.Cylindrical, Anchor: geom.Vec3{20, 20, 5}, Axis: z, Radius: 5, Ref: x}
	b := feature.Feature{Kind: feature.Cylindrical, Anchor: geom.Vec3{}, Axis: z.Mul(-1), Radius: 5, Ref: x}

	plain, err := Solve(match.Match{A: a, B: b})
	require.NoError(t, err)
	flipped, err := Solve(match.Match{A: a, B: b, RequiredFlip: true})
	require.NoError(t, err)

	// Both land B's anchor on A's; the flip turns B's reference around.
	assert.True(t, geom.Near(plain.Apply(b.Anchor), a.Anchor, 1e-12))
	assert.True(t, geom.Near(flipped.Apply(b.Anchor), a.Anchor, 1e-12))
	assert.True(t, geom.Near(plain.Rotate(b.Ref), x, 1e-12), "twist aligns references")
	assert.True(t, geom.Near(flipped.Rotate(b.Ref), x.Mul(-1), 1e-12))
}

func TestSolveIllFormed(t *testing.T) {
	good := feature.Feature{Kind: feature.Planar, Axis: geom.Vec3{0, 0, 1}}
	tests := []struct {
		name string
		a, b feature.Feature
	}{
		{"zero axis A", feature.Feature{Kind: feature.Planar}, good},
		{"zero axis B", good, feature.Feature{Kind: feature.Planar}},
		{"nan axis", good, feature.Feature{Kind: feature.Planar, Axis: geom.Vec3{math.NaN(), 0, 1}}},
		{"inf anchor", feature.Feature{Kind: feature.Planar, Axis: geom.Vec3{0, 0, 1}, Anchor: geom.Vec3{math.Inf(1), 0, 0}}, good},
		{"unknown kind", feature.Feature{Kind: feature.Kind(0), Axis: geom.Vec3{0, 0, 1}}, good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(match.Match{A: tt.a, B: tt.b})
			require.Error(t, err)
			assert.Equal(t, errors.IllFormedFeature, errors.CodeOf(err))
		})
	}
}

// Applying the solved transform to B and extracting again yields a
// feature sitting on A's, facing it.
func TestRoundTrip(t *testing.T) {
	k := sdfx.New()
	plate, err := k.Box(40, 40, 10)
	require.NoError(t, err)
	plate, err = k.Bore(plate, kernel.BoreSpec{Axis: 2, U: 20, V: 20, Radius: 5})
	require.NoError(t, err)
	pin, err := k.Cylinder(20, 5)
	require.NoError(t, err)

	a := solid.New(plate)
	b := solid.New(pin, solid.WithPlacement(geom.FromEulerDegrees(30, 60, -15, geom.Vec3{70, -20, 33})))
	ex := feature.NewExtractor(k)
	fa, err := ex.Extract(a.View(), tol)
	require.NoError(t, err)
	fb, err := ex.Extract(b.View(), tol)
	require.NoError(t, err)

	matches := match.NewFinder().Find(fa, fb, tol)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		tr, err := Solve(m)
		require.NoError(t, err)

		moved, err := ex.Extract(b.View().Moved(tr), tol)
		require.NoError(t, err)
		var got *feature.Feature
		for i := range moved {
			if moved[i].Topology == m.B.Topology {
				got = &moved[i]
			}
		}
		require.NotNil(t, got, "feature %s vanished", m.B.Topology)
		assert.True(t, geom.Near(got.Anchor, m.A.Anchor, tol), "%s anchor %v want %v", m, got.Anchor, m.A.Anchor)
		assert.True(t, geom.Near(got.Axis, m.A.Axis.Mul(-1), tol), "%s axis %v want %v", m, got.Axis, m.A.Axis.Mul(-1))
	}
}
