package geom

import "math"

// Box is an axis-aligned bounding box. A box with any Min component greater
// than the matching Max component is empty.
type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// EmptyBox returns a box that Extend can grow from.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

// Empty reports whether the box contains no points.
func (b Box) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows the box to contain p.
func (b Box) Extend(p Vec3) Box {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Size returns the edge lengths.
func (b Box) Size() Vec3 {
	if b.Empty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Volume returns the box volume, zero for empty or flat boxes.
func (b Box) Volume() float64 {
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Diagonal returns the length of the main diagonal.
func (b Box) Diagonal() float64 {
	return b.Size().Len()
}

// Intersects reports whether the closed boxes share at least one point.
func (b Box) Intersects(o Box) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Intersection returns the overlap of two boxes; it may be empty or flat.
func (b Box) Intersection(o Box) Box {
	var r Box
	for i := 0; i < 3; i++ {
		r.Min[i] = math.Max(b.Min[i], o.Min[i])
		r.Max[i] = math.Min(b.Max[i], o.Max[i])
	}
	return r
}

// Distance returns the gap between two boxes, zero when they touch or overlap.
func (b Box) Distance(o Box) float64 {
	var d Vec3
	for i := 0; i < 3; i++ {
		switch {
		case o.Min[i] > b.Max[i]:
			d[i] = o.Min[i] - b.Max[i]
		case b.Min[i] > o.Max[i]:
			d[i] = b.Min[i] - o.Max[i]
		}
	}
	return d.Len()
}

// Transform returns the axis-aligned box enclosing b after t.
func (b Box) Transform(t Transform) Box {
	if b.Empty() {
		return b
	}
	out := EmptyBox()
	for i := 0; i < 8; i++ {
		c := Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out = out.Extend(t.Apply(c))
	}
	return out
}
