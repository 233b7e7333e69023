// Package assembly orchestrates automatic assembly of two solids: extract
// features, rank mating pairs, align the best candidate, and reject it if
// the aligned solids interfere, retrying with the next candidate.
package assembly

import (
	"context"
	"time"

	"github.com/chazu/joinery/pkg/align"
	"github.com/chazu/joinery/pkg/collision"
	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/chazu/joinery/pkg/match"
	"github.com/chazu/joinery/pkg/solid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine runs assembly requests. It keeps no state between calls and is
// safe for concurrent use on independent solids.
type Engine struct {
	kernel    kernel.Kernel
	source    feature.Source
	observers []Observer
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithFeatureSource replaces the default extractor, e.g. with a feature.Cache.
func WithFeatureSource(src feature.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithObserver registers observers notified after every Assemble call.
func WithObserver(obs ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, obs...) }
}

// NewEngine returns an Engine backed by k.
func NewEngine(k kernel.Kernel, opts ...Option) *Engine {
	e := &Engine{kernel: k, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	if e.source == nil {
		e.source = feature.NewExtractor(k, feature.WithLogger(e.log))
	}
	return e
}

// notify hands res to every observer. A panicking observer is logged and
// the rest still run.
func (e *Engine) notify(log *zap.Logger, res Result) {
	for _, o := range e.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("observer panicked", zap.Any("panic", r))
				}
			}()
			o.ObserveAssembly(res)
		}()
	}
}

// Assemble places b against a. On success the solved transform is
// committed to b's placement; a is never touched and b is touched only
// then. Failures are reported through the result, never as a panic or a
// returned error.
func (e *Engine) Assemble(ctx context.Context, a, b *solid.Solid, cfg Config) (res Result) {
	start := time.Now()
	res = newResult(uuid.NewString())
	log := e.log.With(zap.String("assembly", res.ID), zap.String("fixed", a.Name()), zap.String("moving", b.Name()))
	defer func() {
		if r := recover(); r != nil {
			res.fail(errors.New(errors.GeometryKernelFailure, "assembly panicked: %v", r))
		}
		res.Duration = time.Since(start)
		log.Debug("assembly finished",
			zap.Bool("success", res.Success),
			zap.Stringers("trace", res.Trace),
			zap.Int("attempts", len(res.Attempts)),
			zap.Duration("elapsed", res.Duration))
		e.notify(log, res)
	}()

	warnings, err := cfg.Validate()
	if err != nil {
		res.fail(err)
		return res
	}
	for _, w := range warnings {
		log.Warn("questionable configuration", zap.String("warning", w))
	}
	if err := ctx.Err(); err != nil {
		res.fail(errors.Wrap(err, errors.Cancelled, "assembly cancelled before start"))
		return res
	}

	fixed, moving := a.View(), b.View()
	fa, fb, err := feature.ExtractPair(ctx, e.source, fixed, moving, cfg.Tolerance)
	if err != nil {
		res.fail(err)
		return res
	}
	res.enter(FeaturesExtracted)
	log.Debug("features extracted", zap.Int("fixed", len(fa)), zap.Int("moving", len(fb)))

	finder := match.NewFinder(match.WithPolicy(cfg.policy()), match.WithLogger(e.log))
	matches := finder.Find(fa, fb, cfg.Tolerance)
	res.enter(MatchesRanked)
	if len(matches) == 0 {
		res.fail(errors.New(errors.NoCompatibleFeatures, "no mating pair among %d×%d features", len(fa), len(fb)).
			WithDetail("%s has %d features, %s has %d", fixed.Name, len(fa), moving.Name, len(fb)))
		return res
	}
	log.Debug("matches ranked", zap.Int("matches", len(matches)), zap.Float64("best", matches[0].Score))

	detector := collision.NewDetector(e.kernel,
		collision.WithVolumeThreshold(cfg.VolumeThreshold),
		collision.WithLogger(e.log))

	var best *Attempt
	for rank, m := range Candidates(matches, cfg.MaxMatchAttempts) {
		if rank > 0 {
			res.enter(Retrying)
		}
		if err := ctx.Err(); err != nil {
			res.fail(errors.Wrap(err, errors.Cancelled, "assembly cancelled after %d attempts", rank))
			return res
		}

		att := Attempt{Rank: rank}
		t, err := align.Solve(m)
		if err != nil {
			if !errors.HasCode(err, errors.IllFormedFeature) {
				res.fail(err)
				return res
			}
			att.Outcome = IllFormed
			res.Attempts = append(res.Attempts, att)
			res.note(err)
			log.Debug("candidate ill-formed", zap.Stringer("match", m), zap.Error(err))
			continue
		}
		att.Match, att.Quality, att.Transform = &m, Quality(m), t
		res.enter(Aligned)

		if cfg.RequireExactContact && !align.Verify(m, t, cfg.Tolerance, cfg.AngularTolerance) {
			att.Outcome = Inexact
			res.Attempts = append(res.Attempts, att)
			res.note(errors.New(errors.NoValidAlignment, "candidate %d (%s) misses exact contact", rank, m))
			continue
		}

		rep, err := detector.Detect(fixed, moving.Moved(t), cfg.Tolerance)
		if err != nil {
			res.fail(err)
			return res
		}
		att.Collision = rep
		res.enter(Verified)

		if !rep.HasCollision && cfg.RequireExactContact && rep.Kind != collision.Touching {
			att.Outcome = Inexact
			res.Attempts = append(res.Attempts, att)
			res.note(errors.New(errors.NoValidAlignment, "candidate %d (%s) leaves the mated surfaces apart", rank, m))
			log.Debug("candidate misses contact", zap.Int("rank", rank), zap.Stringer("match", m), zap.Stringer("kind", rep.Kind))
			continue
		}

		if !rep.HasCollision {
			b.Commit(t)
			res.Attempts = append(res.Attempts, att)
			res.succeed(att)
			log.Info("assembled",
				zap.Stringer("match", m),
				zap.Stringer("transform", t),
				zap.Int("rank", rank),
				zap.Float64("quality", att.Quality))
			return res
		}

		att.Outcome = Collided
		res.Attempts = append(res.Attempts, att)
		log.Debug("candidate interferes",
			zap.Int("rank", rank),
			zap.Stringer("match", m),
			zap.Float64("overlap", rep.OverlapVolume),
			zap.Stringer("kind", rep.Kind))
		if best == nil || rep.OverlapVolume < best.Collision.OverlapVolume {
			c := att
			best = &c
		}
	}

	tried := len(res.Attempts)
	if best != nil {
		t := best.Transform
		res.Transform = &t
		res.Match = best.Match
		res.Collision = best.Collision
	}
	if best == nil && tried > 0 && res.Attempts[tried-1].Outcome == Inexact {
		res.fail(errors.New(errors.NoValidAlignment, "none of %d candidates brought %s into contact", tried, moving.Name))
		return res
	}
	res.fail(errors.New(errors.NoValidAlignment, "none of %d candidates placed %s without interference", tried, moving.Name))
	return res
}
