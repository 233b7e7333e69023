// Package tessellate turns placed solids into world-space triangle meshes
// using a geometry kernel. One mesh is produced per solid.
package tessellate

import (
	"context"
	"fmt"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/solid"
	"golang.org/x/sync/errgroup"
)

// palette assigns distinct colors to parts.
var palette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is the JSON-serializable mesh format written by the CLI.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// Tessellate meshes every view with its placement applied. Meshes are
// returned in view order. The views are read-only.
func Tessellate(ctx context.Context, views []solid.View, k kernel.Kernel) ([]*kernel.Mesh, error) {
	meshes := make([]*kernel.Mesh, len(views))
	g, ctx := errgroup.WithContext(ctx)
	for i, v := range views {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local, err := k.ToMesh(v.Shape)
			if err != nil {
				return fmt.Errorf("tessellate: ToMesh failed for %s: %w", partName(v), err)
			}
			m := place(local, v.Placement)
			m.PartName = partName(v)
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// Colorize converts kernel meshes to MeshData, cycling through the palette.
func Colorize(meshes []*kernel.Mesh) []MeshData {
	out := make([]MeshData, 0, len(meshes))
	for i, m := range meshes {
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    palette[i%len(palette)],
		})
	}
	return out
}

// place returns a copy of m in world coordinates. Vertices take the full
// transform, normals only its rotation.
func place(m *kernel.Mesh, t geom.Transform) *kernel.Mesh {
	out := &kernel.Mesh{
		Vertices: make([]float32, len(m.Vertices)),
		Normals:  make([]float32, len(m.Normals)),
		Indices:  append([]uint32(nil), m.Indices...),
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		p := t.Apply(geom.Vec3{float64(m.Vertices[i]), float64(m.Vertices[i+1]), float64(m.Vertices[i+2])})
		out.Vertices[i], out.Vertices[i+1], out.Vertices[i+2] = float32(p[0]), float32(p[1]), float32(p[2])
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		n := t.Rotate(geom.Vec3{float64(m.Normals[i]), float64(m.Normals[i+1]), float64(m.Normals[i+2])})
		out.Normals[i], out.Normals[i+1], out.Normals[i+2] = float32(n[0]), float32(n[1]), float32(n[2])
	}
	return out
}

// partName prefers the solid's name and falls back to a short ID.
func partName(v solid.View) string {
	if v.Name != "" {
		return v.Name
	}
	if len(v.ID) > 8 {
		return v.ID[:8]
	}
	return v.ID
}
