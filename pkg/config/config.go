// Package config loads joinery settings from a YAML file, JOINERY_*
// environment variables and bound command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/chazu/joinery/pkg/logging"
	"github.com/chazu/joinery/pkg/script"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix; nested keys map to
// JOINERY_<SECTION>_<FIELD>, e.g. JOINERY_ASSEMBLY_TOLERANCE.
const envPrefix = "JOINERY"

// Kernel defaults.
const (
	DefaultMeshCells   = 64
	DefaultVolumeCells = 48
)

// Config is the complete application configuration.
type Config struct {
	Assembly assembly.Config `mapstructure:"assembly" json:"assembly"`
	Kernel   KernelConfig    `mapstructure:"kernel" json:"kernel"`
	Script   ScriptConfig    `mapstructure:"script" json:"script"`
	Log      logging.Config  `mapstructure:"log" json:"log"`
	Metrics  MetricsConfig   `mapstructure:"metrics" json:"metrics"`
}

// KernelConfig sets the sampling resolution of the geometry kernel.
type KernelConfig struct {
	MeshCells   int `mapstructure:"mesh_cells" json:"meshCells"`
	VolumeCells int `mapstructure:"volume_cells" json:"volumeCells"`
}

// ScriptConfig bounds scene script evaluation.
type ScriptConfig struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// MetricsConfig controls assembly metrics export. When enabled the
// registry is written to Path in the Prometheus text format after each run.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

// Validate checks every section and returns warnings for settings that are
// legal but probably unintended.
func (c *Config) Validate() ([]string, error) {
	warnings, err := c.Assembly.Validate()
	if err != nil {
		return warnings, fmt.Errorf("config: assembly: %w", err)
	}
	if c.Kernel.MeshCells < 1 {
		return warnings, fmt.Errorf("config: kernel.mesh_cells must be >= 1, got %d", c.Kernel.MeshCells)
	}
	if c.Kernel.VolumeCells < 1 {
		return warnings, fmt.Errorf("config: kernel.volume_cells must be >= 1, got %d", c.Kernel.VolumeCells)
	}
	if c.Kernel.VolumeCells > 256 {
		warnings = append(warnings, fmt.Sprintf("kernel.volume_cells %d makes every overlap check slow", c.Kernel.VolumeCells))
	}
	if c.Script.Timeout <= 0 {
		return warnings, fmt.Errorf("config: script.timeout must be positive, got %s", c.Script.Timeout)
	}
	if err := c.Log.Validate(); err != nil {
		return warnings, fmt.Errorf("config: log: %w", err)
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return warnings, fmt.Errorf("config: metrics.path is required when metrics are enabled")
	}
	return warnings, nil
}

// Loader wraps a viper instance preloaded with defaults and environment
// bindings.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with every key defaulted, so environment
// variables resolve even when no file sets the key.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := assembly.DefaultConfig()
	v.SetDefault("assembly.tolerance", def.Tolerance)
	v.SetDefault("assembly.angular_tolerance", def.AngularTolerance)
	v.SetDefault("assembly.max_match_attempts", def.MaxMatchAttempts)
	v.SetDefault("assembly.require_exact_contact", def.RequireExactContact)
	v.SetDefault("assembly.size_weight", def.SizeWeight)
	v.SetDefault("assembly.orientation_weight", def.OrientationWeight)
	v.SetDefault("assembly.volume_threshold", def.VolumeThreshold)
	v.SetDefault("assembly.min_score", def.MinScore)
	v.SetDefault("assembly.pin_clearance", def.PinClearance)
	v.SetDefault("assembly.min_planar_ratio", def.MinPlanarRatio)
	v.SetDefault("kernel.mesh_cells", DefaultMeshCells)
	v.SetDefault("kernel.volume_cells", DefaultVolumeCells)
	v.SetDefault("script.timeout", script.DefaultTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "")
	return &Loader{v: v}
}

// BindFlags makes the named flags override the matching keys. bindings
// maps config keys such as "assembly.tolerance" to flag names.
func (l *Loader) BindFlags(fs *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("config: no flag named %q for %s", name, key)
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, merges environment and flag overrides
// and validates the result. An empty path looks for joinery.yaml in the
// working directory and carries on with defaults if there is none.
func (l *Loader) Load(path string) (*Config, []string, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("joinery")
		l.v.AddConfigPath(".")
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// File returns the config file that was read, if any.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Load is a convenience for NewLoader().Load(path).
func Load(path string) (*Config, []string, error) {
	return NewLoader().Load(path)
}
