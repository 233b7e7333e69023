package tessellate_test

import (
	"context"
	"testing"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/kernel/sdfx"
	"github.com/chazu/joinery/pkg/solid"
	"github.com/chazu/joinery/pkg/tessellate"
)

// makeBox creates a placed box solid with the given name and dimensions.
func makeBox(t *testing.T, k *sdfx.SdfxKernel, name string, x, y, z float64, at geom.Transform) *solid.Solid {
	t.Helper()
	shape, err := k.Box(x, y, z)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	return solid.New(shape, solid.WithName(name), solid.WithPlacement(at))
}

func centroid(m *kernel.Mesh) geom.Vec3 {
	var c geom.Vec3
	n := m.VertexCount()
	for i := 0; i < n; i++ {
		c = c.Add(m.Vertex(i))
	}
	return c.Mul(1 / float64(n))
}

func TestSingleBox(t *testing.T) {
	k := sdfx.New()
	shelf := makeBox(t, k, "shelf", 60, 30, 18, geom.Identity())

	meshes, err := tessellate.Tessellate(context.Background(), []solid.View{shelf.View()}, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}

	m := meshes[0]
	if m.IsEmpty() {
		t.Fatal("mesh should not be empty")
	}
	if m.PartName != "shelf" {
		t.Errorf("expected PartName %q, got %q", "shelf", m.PartName)
	}
	if m.TriangleCount() == 0 {
		t.Error("mesh should have triangles")
	}
}

func TestPlacementIsApplied(t *testing.T) {
	k := sdfx.New()
	// A 100x50x10 box placed at (200,100,50) spans (200,100,50)-(300,150,60).
	board := makeBox(t, k, "board", 100, 50, 10, geom.Translation(geom.Vec3{200, 100, 50}))

	meshes, err := tessellate.Tessellate(context.Background(), []solid.View{board.View()}, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	c := centroid(meshes[0])

	// Marching cubes is approximate.
	const tol = 20.0
	if !geom.Near(c, geom.Vec3{250, 125, 55}, tol) {
		t.Errorf("centroid = %v, expected near (250, 125, 55)", c)
	}
}

func TestRotationTurnsNormals(t *testing.T) {
	k := sdfx.New()
	// Stand a 10x10x40 column on its side along X.
	rot := geom.FromEulerDegrees(0, 90, 0, geom.Vec3{})
	col := makeBox(t, k, "column", 10, 10, 40, rot)

	local, err := k.ToMesh(col.Shape())
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	meshes, err := tessellate.Tessellate(context.Background(), []solid.View{col.View()}, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	m := meshes[0]
	if m.VertexCount() != local.VertexCount() {
		t.Fatalf("vertex count changed: %d vs %d", m.VertexCount(), local.VertexCount())
	}

	size := m.Bounds().Size()
	if size[0] < 30 || size[2] > 20 {
		t.Errorf("rotated bounds %v, expected long along X", size)
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		ln := geom.Vec3{float64(local.Normals[i]), float64(local.Normals[i+1]), float64(local.Normals[i+2])}
		if !geom.Finite(ln) {
			continue
		}
		n := geom.Vec3{float64(m.Normals[i]), float64(m.Normals[i+1]), float64(m.Normals[i+2])}
		if !geom.Near(n, rot.Rotate(ln), 1e-5) {
			t.Fatalf("normal %d = %v, want %v", i/3, n, rot.Rotate(ln))
		}
	}
	// The original shape's mesh is untouched.
	if local.Bounds().Size()[2] < 30 {
		t.Error("kernel mesh was modified in place")
	}
}

func TestManyParts(t *testing.T) {
	k := sdfx.New()
	var views []solid.View
	names := []string{"left-side", "right-side", "top"}
	for i, n := range names {
		views = append(views, makeBox(t, k, n, 40, 30, 18, geom.Translation(geom.Vec3{float64(i) * 100, 0, 0})).View())
	}

	meshes, err := tessellate.Tessellate(context.Background(), views, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 3 {
		t.Fatalf("expected 3 meshes, got %d", len(meshes))
	}
	for i, m := range meshes {
		if m.PartName != names[i] {
			t.Errorf("mesh %d is %q, want %q", i, m.PartName, names[i])
		}
	}

	data := tessellate.Colorize(meshes)
	if len(data) != 3 {
		t.Fatalf("expected 3 colored meshes, got %d", len(data))
	}
	if data[0].Color == data[1].Color {
		t.Error("adjacent parts should get distinct colors")
	}
}

func TestNoViews(t *testing.T) {
	meshes, err := tessellate.Tessellate(context.Background(), nil, sdfx.New())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 0 {
		t.Fatalf("expected 0 meshes, got %d", len(meshes))
	}
}

func TestCancelled(t *testing.T) {
	k := sdfx.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := makeBox(t, k, "b", 10, 10, 10, geom.Identity())
	if _, err := tessellate.Tessellate(ctx, []solid.View{b.View()}, k); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
