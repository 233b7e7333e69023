// Package match pairs features of a fixed solid A with features of a
// movable solid B and ranks the pairs by geometric compatibility.
package match

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/geom"
	"go.uber.org/zap"
)

// Default policy values.
const (
	DefaultSizeWeight        = 0.6
	DefaultOrientationWeight = 0.4
	// DefaultAngularTolerance is one degree.
	DefaultAngularTolerance = 0.017453
	// DefaultMinPlanarRatio rejects face pairs whose extents differ tenfold.
	DefaultMinPlanarRatio = 0.1
)

// Policy holds the tunable scoring and filtering parameters.
type Policy struct {
	SizeWeight        float64
	OrientationWeight float64
	// AngularTolerance bounds the deviation from antiparallel for planar pairs.
	AngularTolerance float64
	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64
	// PinClearance, when positive, accepts a bore/shaft pair whose hole
	// radius exceeds the pin radius by up to this much.
	PinClearance float64
	// MinPlanarRatio is the smallest accepted extent ratio for planar pairs.
	MinPlanarRatio float64
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		SizeWeight:        DefaultSizeWeight,
		OrientationWeight: DefaultOrientationWeight,
		AngularTolerance:  DefaultAngularTolerance,
		MinPlanarRatio:    DefaultMinPlanarRatio,
	}
}

// Match is a scored candidate pairing.
type Match struct {
	A      feature.Feature `json:"featureA"`
	B      feature.Feature `json:"featureB"`
	IndexA int             `json:"indexA"`
	IndexB int             `json:"indexB"`
	Score  float64         `json:"score"`
	// SizeDiff and OrientationError are the normalized terms behind Score.
	SizeDiff         float64 `json:"sizeDiff"`
	OrientationError float64 `json:"orientationError"`
	// RequiredFlip asks the solver for a half turn about A's axis.
	RequiredFlip bool `json:"requiredFlip"`
}

func (m Match) String() string {
	return fmt.Sprintf("%s #%d ↔ #%d score=%.3f flip=%t", m.A.Kind, m.IndexA, m.IndexB, m.Score, m.RequiredFlip)
}

// Finder ranks feature pairs.
type Finder struct {
	policy Policy
	log    *zap.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithPolicy overrides the default policy.
func WithPolicy(p Policy) Option {
	return func(f *Finder) { f.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFinder returns a Finder.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{policy: DefaultPolicy(), log: zap.NewNop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Find returns every compatible pair, best first. Ordering is by score
// descending, then smaller size difference, then A's and B's feature index.
// An empty result is not an error.
func (f *Finder) Find(featuresA, featuresB []feature.Feature, tolerance float64) []Match {
	var out []Match
	for i, a := range featuresA {
		for j, b := range featuresB {
			m, ok := f.pair(a, b, tolerance)
			if !ok {
				continue
			}
			m.IndexA, m.IndexB = i, j
			if m.Score < f.policy.MinScore {
				continue
			}
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(x, y Match) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.SizeDiff, y.SizeDiff); c != 0 {
			return c
		}
		if c := cmp.Compare(x.IndexA, y.IndexA); c != 0 {
			return c
		}
		return cmp.Compare(x.IndexB, y.IndexB)
	})
	f.log.Debug("ranked matches",
		zap.Int("featuresA", len(featuresA)),
		zap.Int("featuresB", len(featuresB)),
		zap.Int("matches", len(out)))
	return out
}

// pair applies the compatibility predicate and scores a single pair.
func (f *Finder) pair(a, b feature.Feature, tol float64) (Match, bool) {
	if a.Kind != b.Kind {
		return Match{}, false
	}
	m := Match{A: a, B: b}
	switch a.Kind {
	case feature.Planar:
		// Mating faces face each other: B's normal must be close to -A's.
		dev := geom.AngleBetween(b.Axis, a.Axis.Mul(-1))
		if dev > f.policy.AngularTolerance {
			return Match{}, false
		}
		m.SizeDiff = relDiff(a.Extent, b.Extent)
		if 1-m.SizeDiff < f.policy.MinPlanarRatio {
			return Match{}, false
		}
		if f.policy.AngularTolerance > 0 {
			m.OrientationError = dev / f.policy.AngularTolerance
		}
	case feature.Cylindrical, feature.Circular:
		if !f.radiiFit(a, b, tol) {
			return Match{}, false
		}
		m.SizeDiff = relDiff(a.Radius, b.Radius)
		d := a.Axis.Dot(b.Axis)
		// Deviation of the two lines from coaxial, ignoring direction.
		m.OrientationError = math.Acos(math.Min(1, math.Abs(d))) / (math.Pi / 2)
		m.RequiredFlip = d > 0
	default:
		f.log.Warn("unknown feature kind", zap.Stringer("kind", a.Kind))
		return Match{}, false
	}
	m.Score = f.score(m.SizeDiff, m.OrientationError)
	return m, true
}

// radiiFit accepts equal radii within tol, or a bore/shaft pair within the
// configured clearance window.
func (f *Finder) radiiFit(a, b feature.Feature, tol float64) bool {
	if math.Abs(a.Radius-b.Radius) <= tol {
		return true
	}
	if f.policy.PinClearance <= 0 || a.Kind != feature.Cylindrical || a.Concave == b.Concave {
		return false
	}
	hole, pin := a, b
	if b.Concave {
		hole, pin = b, a
	}
	clearance := hole.Radius - pin.Radius
	return clearance >= 0 && clearance <= f.policy.PinClearance
}

func (f *Finder) score(sizeDiff, orientErr float64) float64 {
	ws, wo := f.policy.SizeWeight, f.policy.OrientationWeight
	if ws+wo <= 0 {
		ws, wo = DefaultSizeWeight, DefaultOrientationWeight
	}
	s := (ws*(1-clamp01(sizeDiff)) + wo*(1-clamp01(orientErr))) / (ws + wo)
	return clamp01(s)
}

// relDiff is |a-b| normalized by the larger magnitude.
func relDiff(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
