package assembly

import (
	"fmt"
	"time"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/match"
)

// Connection type bonuses for Quality.
const (
	bonusBorePin     = 0.9
	bonusCylindrical = 0.8
	bonusPlanar      = 0.7
	bonusCircular    = 0.5
	bonusUnknown     = 0.2
)

// slowAssembly is the duration after which Suggest recommends tuning.
const slowAssembly = 10 * time.Second

// Quality rates a match in [0, 1]: a bonus for the kind of connection, plus
// 0.3 of the match score and 0.2 of how well the axes line up.
func Quality(m match.Match) float64 {
	var q float64
	switch m.A.Kind {
	case feature.Cylindrical:
		q = bonusCylindrical
		if m.A.Concave != m.B.Concave {
			q = bonusBorePin
		}
	case feature.Planar:
		q = bonusPlanar
	case feature.Circular:
		q = bonusCircular
	default:
		q = bonusUnknown
	}
	q += 0.3*m.Score + 0.2*(1-m.OrientationError)
	return min(1, max(0, q))
}

// Suggest returns human-readable hints for improving r.
func Suggest(r Result) []string {
	var out []string
	if !r.Success {
		switch r.Code() {
		case errors.NoFeaturesFound:
			out = append(out,
				"give both parts a flat face, a bore or a round edge to mate on",
				"check that the part is a closed solid")
		case errors.NoCompatibleFeatures:
			out = append(out,
				"increase the tolerance",
				"enable pin clearance for loose bore fits",
				"lower the minimum match score")
		case errors.NoValidAlignment:
			out = append(out,
				"pre-position the parts by hand before assembling",
				"raise the maximum number of match attempts",
				"raise the interference volume threshold")
		case errors.IllFormedFeature:
			out = append(out, "repair degenerate faces or edges in the part geometry")
		case errors.GeometryKernelFailure:
			out = append(out, "lower the kernel sampling resolution or simplify the parts")
		case errors.InvalidConfig:
			out = append(out, "fix the configuration values reported in the diagnostics")
		}
		return out
	}
	switch {
	case r.Quality < 0.6:
		out = append(out, "look for better suited mating features", "check the part geometry")
	case r.Quality < 0.8:
		out = append(out, "fine-tune the tolerances")
	}
	if len(r.Attempts) > 1 {
		out = append(out, fmt.Sprintf("the best-ranked pair interfered; %d candidates were needed", len(r.Attempts)))
	}
	if r.Duration > slowAssembly {
		out = append(out, "reduce the maximum number of match attempts or the kernel resolution")
	}
	return out
}
