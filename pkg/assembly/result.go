package assembly

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/chazu/joinery/pkg/collision"
	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/match"
)

// State is a step of the assembly state machine.
type State int

const (
	Idle State = iota
	FeaturesExtracted
	MatchesRanked
	Aligned
	Verified
	Done
	Retrying
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	FeaturesExtracted: "features-extracted",
	MatchesRanked:     "matches-ranked",
	Aligned:           "aligned",
	Verified:          "verified",
	Done:              "done",
	Retrying:          "retrying",
	Failed:            "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is how one candidate attempt ended.
type Outcome int

const (
	Accepted Outcome = iota
	Collided
	IllFormed
	Inexact
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Collided:
		return "collided"
	case IllFormed:
		return "ill-formed"
	case Inexact:
		return "inexact"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Attempt records one ranked candidate tried by the retry loop.
type Attempt struct {
	Rank int `json:"rank"`
	// Match is nil for ill-formed candidates, whose features carry
	// non-finite values.
	Match     *match.Match     `json:"match,omitempty"`
	Transform geom.Transform   `json:"transform"`
	Collision collision.Report `json:"collision"`
	Quality   float64          `json:"quality"`
	Outcome   Outcome          `json:"outcome"`
}

// Result is the outcome of Engine.Assemble. Transform and Match are set on
// success, and on NoValidAlignment to the least-overlapping attempt.
type Result struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	// Reverted marks a placement that was committed and later undone.
	Reverted    bool             `json:"reverted,omitempty"`
	State       State            `json:"state"`
	Transform   *geom.Transform  `json:"transform,omitempty"`
	Match       *match.Match     `json:"match,omitempty"`
	Collision   collision.Report `json:"collision"`
	Diagnostics []string         `json:"diagnostics"`
	Attempts    []Attempt        `json:"attempts"`
	Trace       []State          `json:"trace"`
	Quality     float64          `json:"quality"`
	Duration    time.Duration    `json:"duration"`
	// Err is the classified failure, nil on success.
	Err error `json:"-"`
}

// Code returns the failure code, or "" on success.
func (r Result) Code() errors.Code {
	return errors.CodeOf(r.Err)
}

func newResult(id string) Result {
	return Result{
		ID:          id,
		State:       Idle,
		Trace:       []State{Idle},
		Diagnostics: []string{},
		Attempts:    []Attempt{},
		Collision:   collision.Report{ContactRegions: []collision.Region{}},
	}
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

func (r *Result) note(err error) {
	r.Diagnostics = append(r.Diagnostics, diagnostic(err))
}

// fail classifies err, which must be non-nil, and moves to Failed.
func (r *Result) fail(err error) {
	if errors.CodeOf(err) == "" {
		err = errors.Wrap(err, errors.GeometryKernelFailure, "unclassified failure")
	}
	r.Err = err
	r.Success = false
	r.note(err)
	r.enter(Failed)
}

// revert records that a committed placement was undone for err.
func (r *Result) revert(err error) {
	r.Reverted = true
	r.fail(err)
}

func (r *Result) succeed(a Attempt) {
	t := a.Transform
	r.Success = true
	r.Transform = &t
	r.Match = a.Match
	r.Collision = a.Collision
	r.Quality = a.Quality
	r.enter(Done)
}

// diagnostic renders err so that it starts with its code name.
func diagnostic(err error) string {
	s := err.Error()
	code := errors.CodeOf(err)
	if code == "" || strings.HasPrefix(s, string(code)) {
		return s
	}
	return string(code) + ": " + s
}

// Candidates yields at most limit matches in rank order. Stopping early
// is the only way the retry loop ends besides exhaustion.
func Candidates(ms []match.Match, limit int) iter.Seq2[int, match.Match] {
	return func(yield func(int, match.Match) bool) {
		for i, m := range ms {
			if i >= limit || !yield(i, m) {
				return
			}
		}
	}
}
