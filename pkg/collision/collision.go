// Package collision tests placed solids for volumetric interference. A
// bounding-box broad phase rejects distant pairs before the kernel's
// boolean intersection is consulted, and contact at a mating surface (zero
// or near-zero overlap volume) is never reported as a collision.
package collision

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/solid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Kind classifies the relationship between two solids.
type Kind int

const (
	None Kind = iota
	Touching
	Overlapping
	Penetrating
	Containing
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Touching:
		return "touching"
	case Overlapping:
		return "overlapping"
	case Penetrating:
		return "penetrating"
	case Containing:
		return "containing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classification thresholds, as fractions of solid volume.
const (
	penetratingFraction = 0.5
	containingFraction  = 0.9
)

// Region is one connected piece of an interference, summarized for display.
type Region struct {
	Centroid geom.Vec3 `json:"centroid"`
	Radius   float64   `json:"radius"`
}

// Report is the outcome of one detection.
type Report struct {
	HasCollision  bool    `json:"hasCollision"`
	OverlapVolume float64 `json:"overlapVolume"`
	// ContactRegions is empty unless HasCollision is set.
	ContactRegions []Region `json:"contactRegions"`
	Kind           Kind     `json:"kind"`
	// NarrowPhase records whether the boolean intersection ran.
	NarrowPhase bool `json:"narrowPhase"`
	// Distance is the gap between bounding boxes when the broad phase rejects.
	Distance float64 `json:"distance"`
	// OverlapPercent is the overlap as a share of the smaller solid.
	OverlapPercent float64 `json:"overlapPercent"`
}

// Detector runs collision queries against a kernel.
type Detector struct {
	kernel    kernel.Kernel
	threshold float64
	log       *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithVolumeThreshold fixes the interference volume threshold. Zero or a
// negative value selects tolerance³.
func WithVolumeThreshold(v float64) Option {
	return func(d *Detector) { d.threshold = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDetector returns a Detector using k.
func NewDetector(k kernel.Kernel, opts ...Option) *Detector {
	d := &Detector{kernel: k, log: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Threshold returns the interference volume threshold for tolerance.
func (d *Detector) Threshold(tolerance float64) float64 {
	if d.threshold > 0 {
		return d.threshold
	}
	return tolerance * tolerance * tolerance
}

// Detect tests a and b at their view placements.
func (d *Detector) Detect(a, b solid.View, tolerance float64) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = Report{}, errors.New(errors.GeometryKernelFailure, "collision test %s/%s panicked: %v", a.Name, b.Name, r)
		}
	}()

	boxA, err := d.kernel.BoundingVolume(a.Shape, a.Placement)
	if err != nil {
		return Report{}, errors.Wrap(err, errors.GeometryKernelFailure, "bounding volume of %s", a.Name)
	}
	boxB, err := d.kernel.BoundingVolume(b.Shape, b.Placement)
	if err != nil {
		return Report{}, errors.Wrap(err, errors.GeometryKernelFailure, "bounding volume of %s", b.Name)
	}
	if !boxA.Intersects(boxB) {
		return Report{Kind: None, Distance: boxA.Distance(boxB), ContactRegions: []Region{}}, nil
	}

	rep = Report{NarrowPhase: true, ContactRegions: []Region{}}
	inter, err := d.kernel.Intersect(a.Shape, a.Placement, b.Shape, b.Placement, tolerance)
	if err != nil {
		return Report{}, errors.Wrap(err, errors.GeometryKernelFailure, "intersect %s with %s", a.Name, b.Name)
	}
	if inter == nil {
		if flat(boxA.Intersection(boxB), tolerance) {
			rep.Kind = Touching
		}
		return rep, nil
	}

	vol, err := d.kernel.Volume(inter)
	if err != nil {
		return Report{}, errors.Wrap(err, errors.GeometryKernelFailure, "volume of %s∩%s", a.Name, b.Name)
	}
	rep.OverlapVolume = vol
	threshold := d.Threshold(tolerance)
	if vol <= threshold {
		rep.Kind = Touching
		return rep, nil
	}

	rep.HasCollision = true
	rep.Kind = Overlapping
	va, errA := d.kernel.Volume(a.Shape)
	vb, errB := d.kernel.Volume(b.Shape)
	if errA == nil && errB == nil && va > 0 && vb > 0 {
		smaller := math.Min(va, vb)
		rep.OverlapPercent = 100 * vol / smaller
		if vol > penetratingFraction*va || vol > penetratingFraction*vb {
			rep.Kind = Penetrating
		}
		if vol >= containingFraction*smaller {
			rep.Kind = Containing
		}
	}

	rep.ContactRegions, err = d.regions(inter)
	if err != nil {
		return Report{}, err
	}
	d.log.Debug("interference",
		zap.String("a", a.Name),
		zap.String("b", b.Name),
		zap.Float64("volume", vol),
		zap.Float64("threshold", threshold),
		zap.Stringer("kind", rep.Kind),
		zap.Int("regions", len(rep.ContactRegions)))
	return rep, nil
}

func (d *Detector) regions(inter kernel.Shape) ([]Region, error) {
	mesh, err := d.kernel.ToMesh(inter)
	if err != nil {
		return nil, errors.Wrap(err, errors.GeometryKernelFailure, "mesh intersection")
	}
	if rs := Regions(mesh); len(rs) > 0 {
		return rs, nil
	}
	// Too thin to mesh: summarize by its bounds.
	min, max := inter.BoundingBox()
	box := geom.Box{Min: min, Max: max}
	return []Region{{Centroid: box.Center(), Radius: box.Diagonal() / 2}}, nil
}

// flat reports whether an overlap box has collapsed to a sheet, line or point.
func flat(b geom.Box, tolerance float64) bool {
	s := b.Size()
	return s[0] <= tolerance || s[1] <= tolerance || s[2] <= tolerance
}

// PairReport is one entry of a batch check.
type PairReport struct {
	I, J   int
	Report Report
}

// CheckAll tests every pair of views concurrently and returns the reports
// in (i, j) order, i < j.
func (d *Detector) CheckAll(ctx context.Context, views []solid.View, tolerance float64) ([]PairReport, error) {
	var pairs []PairReport
	for i := range views {
		for j := i + 1; j < len(views); j++ {
			pairs = append(pairs, PairReport{I: i, J: j})
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for n := range pairs {
		p := &pairs[n]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.Cancelled, "batch collision check")
			}
			rep, err := d.Detect(views[p.I], views[p.J], tolerance)
			if err != nil {
				return err
			}
			p.Report = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}
