package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/joinery/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pinScene = "../examples/pin_and_plate.zy"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check", pinScene)
	require.NoError(t, err)
	assert.Contains(t, out, "2 part(s), 1 step(s)")
}

func TestCheckReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zy")
	require.NoError(t, os.WriteFile(path, []byte(`(defpart "a" (box 0 1 1)) (defpart "b" (box 1 1 1)) (assemble "a" "b")`), 0o644))

	out, err := run(t, "check", path)
	assert.ErrorContains(t, err, "1 error(s)")
	assert.Contains(t, out, "part a")
}

func TestCheckJSON(t *testing.T) {
	out, err := run(t, "check", "--json", pinScene)
	require.NoError(t, err)
	var problems []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &problems))
	assert.Empty(t, problems)
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.json")
	metrics := filepath.Join(dir, "joinery.prom")
	meshes := filepath.Join(dir, "meshes.json")

	out, err := run(t, "assemble", pinScene, "--report", report, "--metrics", metrics, "--mesh", meshes)
	require.NoError(t, err, out)
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "plate")
	assert.Contains(t, out, "quality 1.00, 0 conflict(s)")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var rep struct {
		Sequence struct {
			Success bool `json:"success"`
		} `json:"sequence"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.True(t, rep.Sequence.Success)

	data, err = os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "joinery_assembly_total")

	data, err = os.ReadFile(meshes)
	require.NoError(t, err)
	var ms []struct {
		PartName string `json:"partName"`
	}
	require.NoError(t, json.Unmarshal(data, &ms))
	require.Len(t, ms, 2)
	assert.Equal(t, "pin", ms[1].PartName)
}

func TestAssembleJSON(t *testing.T) {
	out, err := run(t, "assemble", "--json", pinScene)
	require.NoError(t, err)
	var got struct {
		Steps []struct {
			Fixed  string `json:"fixed"`
			Moving string `json:"moving"`
		} `json:"steps"`
		Placements []struct {
			Name string `json:"name"`
		} `json:"placements"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "pin", got.Steps[0].Moving)
	assert.Len(t, got.Placements, 2)
}

func TestAssembleFlagOverrides(t *testing.T) {
	_, err := run(t, "assemble", pinScene, "--tolerance", "-1")
	assert.ErrorContains(t, err, "tolerance must be positive")
}

func TestAssembleConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joinery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kernel:\n  mesh_cells: 0\n"), 0o644))

	_, err := run(t, "--config", path, "assemble", pinScene)
	assert.ErrorContains(t, err, "mesh_cells")
}

func TestAssembleInvalidScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.zy")
	require.NoError(t, os.WriteFile(path, []byte(`(defpart "a" (sphere :radius 1)) (assemble "a" "a")`), 0o644))

	out, err := run(t, "assemble", path)
	assert.ErrorContains(t, err, "failed")
	assert.Contains(t, out, "error:")
}

func TestAssembleMissingFile(t *testing.T) {
	_, err := run(t, "assemble", filepath.Join(t.TempDir(), "nope.zy"))
	assert.ErrorContains(t, err, "read scene")
}
