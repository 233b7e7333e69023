package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/chazu/joinery/pkg/config"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const pinAndPlate = `
(defpart "plate"
  (bore (box 40 40 10) :axis :z :u 20 :v 20 :radius 5))
(defpart "pin" (cylinder :height 20 :radius 5)
  :at (vec3 100 0 0) :rotate (vec3 0 90 0))
(assemble "plate" "pin")
`

func testConfig(metrics bool) config.Config {
	return config.Config{
		Assembly: assembly.DefaultConfig(),
		Kernel:   config.KernelConfig{MeshCells: config.DefaultMeshCells, VolumeCells: config.DefaultVolumeCells},
		Script:   config.ScriptConfig{Timeout: 5 * time.Second},
		Metrics:  config.MetricsConfig{Enabled: metrics, Path: "unused"},
	}
}

func newTestApp(t *testing.T, metrics bool) (*App, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	a, err := New(testConfig(metrics), WithLogger(zap.New(core)))
	require.NoError(t, err)
	return a, logs
}

func TestAssemblePinAndPlate(t *testing.T) {
	a, logs := newTestApp(t, true)

	out, err := a.Assemble(context.Background(), pinAndPlate, AssembleOptions{Meshes: true})
	require.NoError(t, err)
	require.True(t, out.OK(), "problems: %v", out.Problems)
	assert.Empty(t, out.Problems)
	require.Len(t, out.Sequence.Steps, 1)
	assert.Empty(t, out.Sequence.Conflicts)
	assert.InDelta(t, 1.0, out.Sequence.Quality, 1e-9)

	require.Len(t, out.Placements, 2)
	assert.Equal(t, "plate", out.Placements[0].Name)
	assert.True(t, out.Placements[0].Transform.ApproxEqual(geom.Identity(), 1e-12))
	assert.Equal(t, "pin", out.Placements[1].Name)

	require.Len(t, out.Meshes, 2)
	assert.Equal(t, "plate", out.Meshes[0].PartName)
	assert.Equal(t, "pin", out.Meshes[1].PartName)
	assert.NotEqual(t, out.Meshes[0].Color, out.Meshes[1].Color)

	entries := logs.FilterMessage("scene assembled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, true, fields["success"])
	assert.Equal(t, int64(2), fields["parts"])

	assert.Empty(t, out.Clashes)
	assert.Equal(t, 1, a.Stats().Total)
}

func TestAssembleReportsClashes(t *testing.T) {
	a, logs := newTestApp(t, false)

	out, err := a.Assemble(context.Background(), pinAndPlate+`
(defpart "pebble" (sphere :radius 3) :at (vec3 8 8 5))
`, AssembleOptions{})
	require.NoError(t, err)
	assert.True(t, out.OK())
	require.Len(t, out.Clashes, 1)
	assert.Equal(t, "plate", out.Clashes[0].A)
	assert.Equal(t, "pebble", out.Clashes[0].B)
	assert.True(t, out.Clashes[0].Report.HasCollision)
	assert.Greater(t, out.Clashes[0].Report.OverlapVolume, 0.0)
	assert.Equal(t, 1, logs.FilterMessage("parts interfere after assembly").Len())
}

func TestTune(t *testing.T) {
	a, logs := newTestApp(t, false)
	assert.False(t, a.Tune(0.9), "no history yet")

	for i := 0; i < 5; i++ {
		a.history.ObserveAssembly(assembly.Result{Quality: 0.2})
	}
	require.True(t, a.Tune(0.9))
	assert.InDelta(t, assembly.DefaultTolerance*0.8, a.AssemblyConfig().Tolerance, 1e-12)
	assert.Equal(t, 6, a.AssemblyConfig().MaxMatchAttempts)
	assert.Equal(t, 1, logs.FilterMessage("tightened assembly settings").Len())
}

func TestAssembleRejectsInvalidScene(t *testing.T) {
	a, logs := newTestApp(t, false)

	out, err := a.Assemble(context.Background(), `
(defpart "plate" (bore (box 40 40 10) :axis :z :u 2 :v 20 :radius 5))
(defpart "pin" (cylinder :height 20 :radius 5))
(assemble "plate" "pin")
`, AssembleOptions{})
	require.NoError(t, err)
	assert.False(t, out.OK())
	assert.Nil(t, out.Sequence)
	require.NotEmpty(t, out.Problems)
	assert.Equal(t, "error", out.Problems[0].Severity)
	assert.Equal(t, "plate", out.Problems[0].Part)
	assert.Equal(t, 1, logs.FilterMessage("scene rejected").Len())
	assert.Equal(t, 0, a.Stats().Total)
}

func TestAssembleRejectsBadSettings(t *testing.T) {
	a, _ := newTestApp(t, false)

	out, err := a.Assemble(context.Background(), pinAndPlate+`(settings :tolerance -1)`, AssembleOptions{})
	require.NoError(t, err)
	assert.False(t, out.OK())
	require.NotEmpty(t, out.Problems)
	last := out.Problems[len(out.Problems)-1]
	assert.Equal(t, "error", last.Severity)
	assert.Contains(t, last.Message, "tolerance must be positive")
	assert.InDelta(t, -1, out.Config.Tolerance, 0)
}

func TestAssembleAppliesSceneSettings(t *testing.T) {
	a, _ := newTestApp(t, false)

	out, err := a.Assemble(context.Background(), pinAndPlate+`(settings :max-match-attempts 3)`, AssembleOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Config.MaxMatchAttempts)
	assert.Equal(t, assembly.DefaultTolerance, out.Config.Tolerance)
}

func TestCheck(t *testing.T) {
	a, _ := newTestApp(t, false)

	s, problems, err := a.Check(context.Background(), `(defpart "a" (box 1 2 3)`)
	require.NoError(t, err)
	assert.Nil(t, s)
	require.Len(t, problems, 1)
	assert.Equal(t, "error", problems[0].Severity)

	s, problems, err = a.Check(context.Background(), `(defpart "lonely" (sphere :radius 1))`)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, hasErrors(problems))
	require.NotEmpty(t, problems)
	assert.Equal(t, "warning", problems[0].Severity)
}

func TestWriteReport(t *testing.T) {
	a, _ := newTestApp(t, false)
	out, err := a.Assemble(context.Background(), pinAndPlate, AssembleOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteReport(&buf, out))

	var got struct {
		Sequence struct {
			Success bool `json:"success"`
		} `json:"sequence"`
		Statistics struct {
			Total int `json:"total"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.Sequence.Success)
	assert.Equal(t, 1, got.Statistics.Total)

	assert.Error(t, a.WriteReport(&buf, &Outcome{}))
}

func TestWriteMetrics(t *testing.T) {
	a, _ := newTestApp(t, true)
	_, err := a.Assemble(context.Background(), pinAndPlate, AssembleOptions{})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(a.Registry(), "joinery_assembly_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	path := filepath.Join(t.TempDir(), "joinery.prom")
	require.NoError(t, a.WriteMetrics(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `joinery_assembly_total{outcome="ok"} 1`))
}

func TestWriteMetricsDisabled(t *testing.T) {
	a, _ := newTestApp(t, false)
	assert.Nil(t, a.Registry())
	assert.ErrorContains(t, a.WriteMetrics(filepath.Join(t.TempDir(), "x.prom")), "disabled")
}

func TestProblemString(t *testing.T) {
	assert.Equal(t, "error: line 3: part pin: too small",
		Problem{Severity: "error", Line: 3, Part: "pin", Message: "too small"}.String())
	assert.Equal(t, "warning: unused", Problem{Severity: "warning", Message: "unused"}.String())
}
