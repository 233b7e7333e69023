package assembly

import (
	"math"
	"testing"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErr  bool
		warnings int
	}{
		{"defaults", func(*Config) {}, false, 0},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }, true, 0},
		{"nan tolerance", func(c *Config) { c.Tolerance = math.NaN() }, true, 0},
		{"huge tolerance", func(c *Config) { c.Tolerance = 20 }, false, 1},
		{"no attempts", func(c *Config) { c.MaxMatchAttempts = 0 }, true, 0},
		{"many attempts", func(c *Config) { c.MaxMatchAttempts = 5000 }, false, 1},
		{"angular too wide", func(c *Config) { c.AngularTolerance = math.Pi }, true, 0},
		{"negative weight", func(c *Config) { c.SizeWeight = -1 }, true, 0},
		{"zero weights", func(c *Config) { c.SizeWeight, c.OrientationWeight = 0, 0 }, true, 0},
		{"orientation only", func(c *Config) { c.SizeWeight = 0 }, false, 0},
		{"negative threshold", func(c *Config) { c.VolumeThreshold = -1 }, true, 0},
		{"min score above one", func(c *Config) { c.MinScore = 1.5 }, true, 0},
		{"negative clearance", func(c *Config) { c.PinClearance = -0.1 }, true, 0},
		{"tiny clearance", func(c *Config) { c.PinClearance = 0.005 }, false, 1},
		{"planar ratio above one", func(c *Config) { c.MinPlanarRatio = 2 }, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			warnings, err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.InvalidConfig, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinScore = StrictMinScore
	cfg.PinClearance = 0.2
	p := cfg.policy()
	assert.Equal(t, 0.6, p.SizeWeight)
	assert.Equal(t, 0.4, p.OrientationWeight)
	assert.Equal(t, 0.7, p.MinScore)
	assert.Equal(t, 0.2, p.PinClearance)
	assert.Equal(t, cfg.AngularTolerance, p.AngularTolerance)
}
