package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joinery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, warnings, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, assembly.DefaultConfig(), cfg.Assembly)
	assert.Equal(t, DefaultMeshCells, cfg.Kernel.MeshCells)
	assert.Equal(t, DefaultVolumeCells, cfg.Kernel.VolumeCells)
	assert.Equal(t, 5*time.Second, cfg.Script.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
assembly:
  tolerance: 0.05
  max_match_attempts: 9
  require_exact_contact: true
kernel:
  volume_cells: 32
script:
  timeout: 2s
log:
  level: debug
  format: json
metrics:
  enabled: true
  path: /tmp/joinery.prom
`)
	l := NewLoader()
	cfg, _, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.File())

	assert.InDelta(t, 0.05, cfg.Assembly.Tolerance, 1e-12)
	assert.Equal(t, 9, cfg.Assembly.MaxMatchAttempts)
	assert.True(t, cfg.Assembly.RequireExactContact)
	// Keys the file leaves out keep their defaults.
	assert.Equal(t, assembly.DefaultConfig().SizeWeight, cfg.Assembly.SizeWeight)
	assert.Equal(t, DefaultMeshCells, cfg.Kernel.MeshCells)
	assert.Equal(t, 32, cfg.Kernel.VolumeCells)
	assert.Equal(t, 2*time.Second, cfg.Script.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/tmp/joinery.prom", cfg.Metrics.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "assembly:\n  tolerance: 0.05\n")
	t.Setenv("JOINERY_ASSEMBLY_TOLERANCE", "0.2")
	t.Setenv("JOINERY_KERNEL_MESH_CELLS", "96")
	t.Setenv("JOINERY_LOG_LEVEL", "warn")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cfg.Assembly.Tolerance, 1e-12)
	assert.Equal(t, 96, cfg.Kernel.MeshCells)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("JOINERY_ASSEMBLY_MAX_MATCH_ATTEMPTS", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("attempts", 0, "")
	fs.Float64("tolerance", 0, "")
	require.NoError(t, fs.Parse([]string{"--attempts=3"}))

	l := NewLoader()
	require.NoError(t, l.BindFlags(fs, map[string]string{
		"assembly.max_match_attempts": "attempts",
		"assembly.tolerance":          "tolerance",
	}))
	cfg, _, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Assembly.MaxMatchAttempts)
	// An unset flag does not shadow the default.
	assert.Equal(t, assembly.DefaultTolerance, cfg.Assembly.Tolerance)
}

func TestBindFlagsUnknown(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err := NewLoader().BindFlags(fs, map[string]string{"assembly.tolerance": "tol"})
	assert.ErrorContains(t, err, `no flag named "tol"`)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative tolerance", "assembly:\n  tolerance: -1\n", "tolerance must be positive"},
		{"zero mesh cells", "kernel:\n  mesh_cells: 0\n", "mesh_cells"},
		{"zero timeout", "script:\n  timeout: 0s\n", "script.timeout"},
		{"bad log format", "log:\n  format: xml\n", "unknown format"},
		{"metrics without path", "metrics:\n  enabled: true\n", "metrics.path"},
		{"malformed yaml", "assembly: [\n", "failed to read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateWarnings(t *testing.T) {
	path := writeConfig(t, "kernel:\n  volume_cells: 300\nassembly:\n  tolerance: 20\n")
	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Len(t, warnings, 2)
}
