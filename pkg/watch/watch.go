// Package watch reports changes to a single scene file.
//
// The parent directory is watched rather than the file itself so that
// editors that save by renaming a temporary file over the original keep
// producing events.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 150 * time.Millisecond

// Op classifies a change.
type Op int

const (
	Modified Op = iota
	Removed
)

func (o Op) String() string {
	if o == Removed {
		return "removed"
	}
	return "modified"
}

// Event is one debounced change to the watched file.
type Event struct {
	Path string
	Op   Op
}

// Watcher monitors one file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before an event is emitted. Zero
// emits every change immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a watcher for path. Watching starts with Watch.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{watcher: fw, path: abs, debounce: DefaultDebounce, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Watch starts monitoring and returns the event channel. The channel is
// closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, fmt.Errorf("watch: add %s: %w", filepath.Dir(w.path), err)
	}

	events := make(chan Event, 8)
	go w.loop(ctx, events)
	return events, nil
}

func (w *Watcher) loop(ctx context.Context, out chan<- Event) {
	defer close(out)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			var op Op
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				op = Modified
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				op = Removed
			default:
				continue
			}
			pending = Event{Path: w.path, Op: op}
			if w.debounce == 0 {
				if !emit(pending) {
					return
				}
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if !emit(pending) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
