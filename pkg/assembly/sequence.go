package assembly

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/joinery/pkg/collision"
	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/solid"
	"go.uber.org/zap"
)

// Step asks for Moving to be attached to Fixed.
type Step struct {
	Fixed  *solid.Solid
	Moving *solid.Solid
}

// Chain returns steps attaching each part to base in order.
func Chain(base *solid.Solid, parts ...*solid.Solid) []Step {
	steps := make([]Step, 0, len(parts))
	for _, p := range parts {
		steps = append(steps, Step{Fixed: base, Moving: p})
	}
	return steps
}

// Conflict records a step that could not be completed.
type Conflict struct {
	Step   int    `json:"step"`
	Fixed  string `json:"fixed"`
	Moving string `json:"moving"`
	// With names a previously placed part the result interfered with.
	With   string `json:"with,omitempty"`
	Reason string `json:"reason"`
}

// SequenceResult is the outcome of AssembleSequence.
type SequenceResult struct {
	Success   bool          `json:"success"`
	Steps     []Result      `json:"steps"`
	Conflicts []Conflict    `json:"conflicts"`
	Quality   float64       `json:"quality"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Suggestions collects hints for every step plus the sequence as a whole.
func (s SequenceResult) Suggestions() []string {
	var out []string
	for i, r := range s.Steps {
		for _, h := range Suggest(r) {
			out = append(out, fmt.Sprintf("step %d: %s", i+1, h))
		}
	}
	if n := len(s.Conflicts); n > 0 {
		out = append(out, fmt.Sprintf("%d parts could not be placed; review the assembly order", n))
	}
	return out
}

// AssembleSequence runs steps in order. A step's fixed part counts as
// placed; after each successful step the moved part is also checked
// against every other placed part, and a clash there undoes the step and
// records a conflict. Quality is 1 − conflicts/steps.
func (e *Engine) AssembleSequence(ctx context.Context, steps []Step, cfg Config) SequenceResult {
	start := time.Now()
	out := SequenceResult{Steps: []Result{}, Conflicts: []Conflict{}}
	detector := collision.NewDetector(e.kernel,
		collision.WithVolumeThreshold(cfg.VolumeThreshold),
		collision.WithLogger(e.log))

	var placed []*solid.Solid
	isPlaced := func(s *solid.Solid) bool {
		for _, p := range placed {
			if p == s {
				return true
			}
		}
		return false
	}

next:
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			out.Err = errors.Wrap(err, errors.Cancelled, "sequence cancelled at step %d", i+1)
			break
		}
		if !isPlaced(st.Fixed) {
			placed = append(placed, st.Fixed)
		}
		conflict := Conflict{Step: i, Fixed: st.Fixed.Name(), Moving: st.Moving.Name()}
		if st.Fixed == st.Moving {
			conflict.Reason = "a part cannot be assembled to itself"
			out.Conflicts = append(out.Conflicts, conflict)
			continue
		}

		before := st.Moving.Placement()
		r := e.Assemble(ctx, st.Fixed, st.Moving, cfg)
		out.Steps = append(out.Steps, r)
		if !r.Success {
			conflict.Reason = diagnostic(r.Err)
			out.Conflicts = append(out.Conflicts, conflict)
			if r.Code() == errors.Cancelled || r.Code() == errors.InvalidConfig {
				out.Err = r.Err
				break
			}
			continue
		}

		moved := st.Moving.View()
		for _, p := range placed {
			if p == st.Fixed || p == st.Moving {
				continue
			}
			rep, err := detector.Detect(p.View(), moved, cfg.Tolerance)
			if err == nil && !rep.HasCollision {
				continue
			}
			if err == nil {
				err = errors.New(errors.NoValidAlignment, "interferes with %s (%.3g mm³)", p.Name(), rep.OverlapVolume)
				e.log.Info("placed part clashes",
					zap.String("moving", st.Moving.Name()),
					zap.String("with", p.Name()),
					zap.Float64("overlap", rep.OverlapVolume))
			}
			st.Moving.SetPlacement(before)
			out.Steps[len(out.Steps)-1].revert(err)
			conflict.With, conflict.Reason = p.Name(), diagnostic(err)
			out.Conflicts = append(out.Conflicts, conflict)
			continue next
		}
		if !isPlaced(st.Moving) {
			placed = append(placed, st.Moving)
		}
	}

	if len(steps) > 0 {
		out.Quality = 1 - float64(len(out.Conflicts))/float64(len(steps))
	}
	out.Success = out.Err == nil && len(out.Conflicts) == 0
	out.Duration = time.Since(start)
	e.log.Info("sequence finished",
		zap.Int("steps", len(steps)),
		zap.Int("conflicts", len(out.Conflicts)),
		zap.Float64("quality", out.Quality),
		zap.Duration("elapsed", out.Duration))
	return out
}
