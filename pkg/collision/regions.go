package collision

import (
	"cmp"
	"math"
	"slices"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
)

// weldQuantum is the grid, in mm, on which coincident mesh vertices are welded.
const weldQuantum = 1e-4

type vertexKey [3]int64

func keyOf(v geom.Vec3) vertexKey {
	return vertexKey{
		int64(math.Round(v[0] / weldQuantum)),
		int64(math.Round(v[1] / weldQuantum)),
		int64(math.Round(v[2] / weldQuantum)),
	}
}

// unionFind over welded vertex ids.
type unionFind []int

func (u unionFind) find(i int) int {
	for u[i] != i {
		u[i] = u[u[i]]
		i = u[i]
	}
	return i
}

func (u unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u[rb] = ra
	}
}

// Regions splits a triangle mesh into connected components, welding
// vertices that coincide, and summarizes each by the centroid of its
// vertices and the largest vertex distance from it. Larger components
// come first.
func Regions(m *kernel.Mesh) []Region {
	if m == nil || m.IsEmpty() {
		return nil
	}
	ids := make(map[vertexKey]int)
	var points []geom.Vec3
	weld := func(i int) int {
		v := m.Vertex(i)
		k := keyOf(v)
		if id, ok := ids[k]; ok {
			return id
		}
		ids[k] = len(points)
		points = append(points, v)
		return len(points) - 1
	}

	tri := make([][3]int, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		tri = append(tri, [3]int{
			weld(int(m.Indices[3*t])),
			weld(int(m.Indices[3*t+1])),
			weld(int(m.Indices[3*t+2])),
		})
	}
	uf := make(unionFind, len(points))
	for i := range uf {
		uf[i] = i
	}
	for _, t := range tri {
		uf.union(t[0], t[1])
		uf.union(t[0], t[2])
	}

	members := make(map[int][]geom.Vec3)
	for i, p := range points {
		r := uf.find(i)
		members[r] = append(members[r], p)
	}

	type component struct {
		size   int
		region Region
	}
	comps := make([]component, 0, len(members))
	for _, pts := range members {
		var c geom.Vec3
		for _, p := range pts {
			c = c.Add(p)
		}
		c = c.Mul(1 / float64(len(pts)))
		radius := 0.0
		for _, p := range pts {
			radius = math.Max(radius, p.Sub(c).Len())
		}
		comps = append(comps, component{size: len(pts), region: Region{Centroid: c, Radius: radius}})
	}
	slices.SortFunc(comps, func(a, b component) int {
		if c := cmp.Compare(b.size, a.size); c != 0 {
			return c
		}
		for i := 0; i < 3; i++ {
			if c := cmp.Compare(a.region.Centroid[i], b.region.Centroid[i]); c != 0 {
				return c
			}
		}
		return 0
	})

	out := make([]Region, len(comps))
	for i, c := range comps {
		out[i] = c.region
	}
	return out
}
