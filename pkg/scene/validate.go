package scene

import (
	"fmt"
	"math"

	"github.com/chazu/joinery/pkg/geom"
)

// Severity indicates whether a validation finding blocks assembly or is
// merely informational.
type Severity int

const (
	SeverityError   Severity = iota // blocks assembly
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Part     string   // which part has the problem, empty if scene-level
	Line     int      // source line, zero when unknown
	Message  string   // human-readable description
	Severity Severity // error or warning
}

func (e ValidationError) Error() string {
	where := ""
	if e.Line > 0 {
		where = fmt.Sprintf("line %d: ", e.Line)
	}
	if e.Part == "" {
		return fmt.Sprintf("[%s] %s%s", e.Severity, where, e.Message)
	}
	return fmt.Sprintf("[%s] %spart %s: %s", e.Severity, where, e.Part, e.Message)
}

// Validate checks the scene and returns every finding. The scene is
// never mutated.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateNames(s)...)
	errs = append(errs, validateDimensions(s)...)
	errs = append(errs, validateBores(s)...)
	errs = append(errs, validateSteps(s)...)
	return errs
}

// HasErrors reports whether any finding is blocking.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateNames checks that every part has a unique, non-empty name.
func validateNames(s *Scene) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int)
	for _, p := range s.Parts {
		if p.Name == "" {
			errs = append(errs, ValidationError{
				Line:     p.Line,
				Message:  fmt.Sprintf("%s part has no name", p.Kind),
				Severity: SeverityError,
			})
			continue
		}
		seen[p.Name]++
	}
	for name, n := range seen {
		if n > 1 {
			errs = append(errs, ValidationError{
				Part:     name,
				Message:  fmt.Sprintf("name assigned to %d parts", n),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateDimensions checks that every primitive has positive size.
func validateDimensions(s *Scene) []ValidationError {
	var errs []ValidationError
	bad := func(p Part, format string, args ...any) {
		errs = append(errs, ValidationError{
			Part:     p.Name,
			Line:     p.Line,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}
	for _, p := range s.Parts {
		switch p.Kind {
		case PrimBox:
			for i, axis := range []string{"X", "Y", "Z"} {
				if !(p.Size[i] > 0) {
					bad(p, "box dimension %s is %.4f, must be positive", axis, p.Size[i])
				}
			}
		case PrimCylinder:
			if !(p.Height > 0) {
				bad(p, "cylinder height is %.4f, must be positive", p.Height)
			}
			if !(p.Radius > 0) {
				bad(p, "cylinder radius is %.4f, must be positive", p.Radius)
			}
		case PrimSphere:
			if !(p.Radius > 0) {
				bad(p, "sphere radius is %.4f, must be positive", p.Radius)
			}
		default:
			bad(p, "unknown primitive kind %v", p.Kind)
		}
	}
	return errs
}

// validateBores checks that bores are drilled into boxes, fit inside the
// face they enter, and do not cut into each other.
func validateBores(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, p := range s.Parts {
		if len(p.Bores) == 0 {
			continue
		}
		if p.Kind != PrimBox {
			errs = append(errs, ValidationError{
				Part:     p.Name,
				Line:     p.Line,
				Message:  fmt.Sprintf("bores are only supported on boxes, not %s", p.Kind),
				Severity: SeverityError,
			})
			continue
		}
		for i, b := range p.Bores {
			if b.Axis < 0 || b.Axis > 2 {
				errs = append(errs, ValidationError{
					Part: p.Name, Line: p.Line,
					Message:  fmt.Sprintf("bore %d axis %d, must be 0, 1 or 2", i, b.Axis),
					Severity: SeverityError,
				})
				continue
			}
			if !(b.Radius > 0) {
				errs = append(errs, ValidationError{
					Part: p.Name, Line: p.Line,
					Message:  fmt.Sprintf("bore %d radius is %.4f, must be positive", i, b.Radius),
					Severity: SeverityError,
				})
				continue
			}
			u, v := boreAxes(b.Axis)
			if b.U-b.Radius <= 0 || b.U+b.Radius >= p.Size[u] || b.V-b.Radius <= 0 || b.V+b.Radius >= p.Size[v] {
				errs = append(errs, ValidationError{
					Part: p.Name, Line: p.Line,
					Message:  fmt.Sprintf("bore %d (r=%.3f at %.3f, %.3f) breaks out of the box", i, b.Radius, b.U, b.V),
					Severity: SeverityError,
				})
			}
			for j := 0; j < i; j++ {
				if boresCross(p.Bores[j], b) {
					errs = append(errs, ValidationError{
						Part: p.Name, Line: p.Line,
						Message:  fmt.Sprintf("bores %d and %d overlap", j, i),
						Severity: SeverityError,
					})
				}
			}
		}
	}
	return errs
}

// validateSteps checks that every step names two distinct known parts and
// warns about parts that are moved more than once or never assembled.
func validateSteps(s *Scene) []ValidationError {
	var errs []ValidationError
	known := make(map[string]bool, len(s.Parts))
	for _, p := range s.Parts {
		known[p.Name] = true
	}
	if len(s.Steps) == 0 && len(s.Parts) > 0 {
		errs = append(errs, ValidationError{
			Message:  "scene has no assembly steps",
			Severity: SeverityWarning,
		})
	}
	moved := make(map[string]int)
	used := make(map[string]bool)
	for _, st := range s.Steps {
		for _, name := range []string{st.Fixed, st.Moving} {
			if !known[name] {
				errs = append(errs, ValidationError{
					Line:     st.Line,
					Message:  fmt.Sprintf("assembly step references unknown part %q", name),
					Severity: SeverityError,
				})
			}
		}
		if st.Fixed == st.Moving {
			errs = append(errs, ValidationError{
				Part:     st.Fixed,
				Line:     st.Line,
				Message:  "part cannot be assembled to itself",
				Severity: SeverityError,
			})
			continue
		}
		used[st.Fixed], used[st.Moving] = true, true
		moved[st.Moving]++
		if moved[st.Moving] == 2 {
			errs = append(errs, ValidationError{
				Part:     st.Moving,
				Line:     st.Line,
				Message:  "part is moved by more than one step; the last placement wins",
				Severity: SeverityWarning,
			})
		}
	}
	if len(s.Steps) > 0 {
		for _, p := range s.Parts {
			if !used[p.Name] {
				errs = append(errs, ValidationError{
					Part:     p.Name,
					Line:     p.Line,
					Message:  "part is not used by any assembly step",
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

// boreAxes returns the two box axes that locate a bore, in X, Y, Z order.
func boreAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// boresCross reports whether two bores cut into each other. Bores along
// different axes both fix the remaining axis.
func boresCross(a, b Bore) bool {
	if a.Axis < 0 || a.Axis > 2 {
		return false
	}
	reach := a.Radius + b.Radius
	at := func(x Bore) geom.Vec3 {
		var v geom.Vec3
		u, w := boreAxes(x.Axis)
		v[u], v[w] = x.U, x.V
		return v
	}
	pa, pb := at(a), at(b)
	if a.Axis == b.Axis {
		u, w := boreAxes(a.Axis)
		return math.Hypot(pa[u]-pb[u], pa[w]-pb[w]) < reach
	}
	third := 3 - a.Axis - b.Axis
	return math.Abs(pa[third]-pb[third]) < reach
}
