package assembly

import (
	"math"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/match"
)

const (
	// DefaultTolerance is the geometric tolerance in mm.
	DefaultTolerance = 0.01
	// DefaultMaxMatchAttempts bounds the retry loop.
	DefaultMaxMatchAttempts = 5
	// ConnectionTolerance is the looser tolerance used for connection search
	// when a caller opts into it.
	ConnectionTolerance = 0.1
	// StrictMinScore is the minimum connection score for strict matching.
	StrictMinScore = 0.7
)

// Config carries every tunable of one assembly call.
type Config struct {
	Tolerance        float64 `mapstructure:"tolerance" json:"tolerance"`
	AngularTolerance float64 `mapstructure:"angular_tolerance" json:"angularTolerance"`
	MaxMatchAttempts int     `mapstructure:"max_match_attempts" json:"maxMatchAttempts"`
	// RequireExactContact rejects a collision-free candidate unless the
	// mated surfaces touch; clearance fits and gaps count as inexact.
	RequireExactContact bool    `mapstructure:"require_exact_contact" json:"requireExactContact"`
	SizeWeight          float64 `mapstructure:"size_weight" json:"sizeWeight"`
	OrientationWeight   float64 `mapstructure:"orientation_weight" json:"orientationWeight"`
	// VolumeThreshold is the interference volume below which overlap counts
	// as contact. Zero means Tolerance³.
	VolumeThreshold float64 `mapstructure:"volume_threshold" json:"volumeThreshold"`
	MinScore        float64 `mapstructure:"min_score" json:"minScore"`
	PinClearance    float64 `mapstructure:"pin_clearance" json:"pinClearance"`
	MinPlanarRatio  float64 `mapstructure:"min_planar_ratio" json:"minPlanarRatio"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Tolerance:         DefaultTolerance,
		AngularTolerance:  match.DefaultAngularTolerance,
		MaxMatchAttempts:  DefaultMaxMatchAttempts,
		SizeWeight:        match.DefaultSizeWeight,
		OrientationWeight: match.DefaultOrientationWeight,
		MinPlanarRatio:    match.DefaultMinPlanarRatio,
	}
}

// Validate checks c and returns warnings for values that are legal but
// probably unintended.
func (c Config) Validate() (warnings []string, err error) {
	invalid := func(format string, args ...any) ([]string, error) {
		return warnings, errors.New(errors.InvalidConfig, format, args...)
	}
	switch {
	case !(c.Tolerance > 0):
		return invalid("tolerance must be positive, got %g", c.Tolerance)
	case c.Tolerance > 10:
		warnings = append(warnings, "tolerance above 10mm makes almost any pair compatible")
	}
	switch {
	case c.MaxMatchAttempts <= 0:
		return invalid("max match attempts must be positive, got %d", c.MaxMatchAttempts)
	case c.MaxMatchAttempts > 1000:
		warnings = append(warnings, "more than 1000 match attempts may be slow")
	}
	if !(c.AngularTolerance > 0) || c.AngularTolerance > math.Pi/2 {
		return invalid("angular tolerance must be in (0, π/2], got %g", c.AngularTolerance)
	}
	if c.SizeWeight < 0 || c.OrientationWeight < 0 || c.SizeWeight+c.OrientationWeight == 0 {
		return invalid("score weights must be non-negative and not both zero, got %g/%g", c.SizeWeight, c.OrientationWeight)
	}
	if c.VolumeThreshold < 0 {
		return invalid("volume threshold must not be negative, got %g", c.VolumeThreshold)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return invalid("min score must be in [0, 1], got %g", c.MinScore)
	}
	if c.PinClearance < 0 {
		return invalid("pin clearance must not be negative, got %g", c.PinClearance)
	}
	if c.MinPlanarRatio < 0 || c.MinPlanarRatio > 1 {
		return invalid("min planar ratio must be in [0, 1], got %g", c.MinPlanarRatio)
	}
	if c.PinClearance > 0 && c.PinClearance <= c.Tolerance {
		warnings = append(warnings, "pin clearance not above tolerance has no effect")
	}
	return warnings, nil
}

func (c Config) policy() match.Policy {
	return match.Policy{
		SizeWeight:        c.SizeWeight,
		OrientationWeight: c.OrientationWeight,
		AngularTolerance:  c.AngularTolerance,
		MinScore:          c.MinScore,
		PinClearance:      c.PinClearance,
		MinPlanarRatio:    c.MinPlanarRatio,
	}
}
