// Package solid pairs an immutable kernel shape with the mutable placement
// that positions it in assembly space.
package solid

import (
	"sync"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel"
	"github.com/google/uuid"
)

// Solid is a shape handle plus its placement. The shape never changes;
// assembly only moves the solid. Each placement change bumps the epoch so
// derived data can be cached per placement.
type Solid struct {
	id    string
	name  string
	shape kernel.Shape

	mu        sync.RWMutex
	placement geom.Transform
	epoch     uint64
}

// Option configures a Solid.
type Option func(*Solid)

// WithName sets a human-readable name; the ID stays unique.
func WithName(name string) Option {
	return func(s *Solid) { s.name = name }
}

// WithPlacement sets the initial placement.
func WithPlacement(t geom.Transform) Option {
	return func(s *Solid) { s.placement = t }
}

// New wraps shape in a Solid at the identity placement.
func New(shape kernel.Shape, opts ...Option) *Solid {
	s := &Solid{
		id:        uuid.NewString(),
		shape:     shape,
		placement: geom.Identity(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.name == "" {
		s.name = s.id[:8]
	}
	return s
}

// ID returns the solid's unique identifier.
func (s *Solid) ID() string { return s.id }

// Name returns the solid's display name.
func (s *Solid) Name() string { return s.name }

// Shape returns the underlying kernel shape.
func (s *Solid) Shape() kernel.Shape { return s.shape }

// Placement returns the current placement.
func (s *Solid) Placement() geom.Transform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placement
}

// Epoch returns the number of placement changes so far.
func (s *Solid) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetPlacement replaces the placement.
func (s *Solid) SetPlacement(t geom.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placement = t
	s.epoch++
}

// Commit applies delta on top of the current placement, in world space.
func (s *Solid) Commit(delta geom.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placement = delta.Compose(s.placement)
	s.epoch++
}

// View returns an immutable snapshot of the solid.
func (s *Solid) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		ID:        s.id,
		Name:      s.name,
		Shape:     s.shape,
		Placement: s.placement,
		Epoch:     s.epoch,
	}
}

// Uncached marks a view whose placement is a candidate that was never
// committed; caches keyed by epoch must not store it.
const Uncached = ^uint64(0)

// View is a read-only snapshot of a solid at one placement.
type View struct {
	ID        string
	Name      string
	Shape     kernel.Shape
	Placement geom.Transform
	Epoch     uint64
}

// Moved returns a candidate view with delta applied on top of the
// placement. The solid itself is untouched.
func (v View) Moved(delta geom.Transform) View {
	v.Placement = delta.Compose(v.Placement)
	v.Epoch = Uncached
	return v
}
