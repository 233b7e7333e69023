package assembly

import (
	"sync"
	"time"

	"github.com/chazu/joinery/pkg/errors"
)

// Observer is notified with the final result of every Assemble call.
type Observer interface {
	ObserveAssembly(Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Result)

// ObserveAssembly calls f(r).
func (f ObserverFunc) ObserveAssembly(r Result) { f(r) }

// DefaultHistorySize is the number of results a History keeps.
const DefaultHistorySize = 100

// Stats summarizes a History.
type Stats struct {
	Total           int                 `json:"total"`
	Successful      int                 `json:"successful"`
	SuccessRate     float64             `json:"successRate"`
	AverageDuration time.Duration       `json:"averageDuration"`
	AverageQuality  float64             `json:"averageQuality"`
	Failures        map[errors.Code]int `json:"failures"`
}

// History keeps the most recent results and derives statistics from them.
type History struct {
	mu      sync.Mutex
	size    int
	results []Result
}

// NewHistory keeps up to size results; size <= 0 selects DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// ObserveAssembly records r, dropping the oldest result when full.
func (h *History) ObserveAssembly(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.results) == h.size {
		copy(h.results, h.results[1:])
		h.results = h.results[:h.size-1]
	}
	h.results = append(h.results, r)
}

// Recent returns up to n of the latest results, oldest first.
func (h *History) Recent(n int) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.results) || n < 0 {
		n = len(h.results)
	}
	return append([]Result(nil), h.results[len(h.results)-n:]...)
}

// Clear drops all results.
func (h *History) Clear() {
	h.mu.Lock()
	h.results = nil
	h.mu.Unlock()
}

// Stats summarizes the recorded results.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Total: len(h.results), Failures: map[errors.Code]int{}}
	if s.Total == 0 {
		return s
	}
	var elapsed time.Duration
	var quality float64
	for _, r := range h.results {
		elapsed += r.Duration
		quality += r.Quality
		if r.Success {
			s.Successful++
		} else {
			s.Failures[r.Code()]++
		}
	}
	s.SuccessRate = 100 * float64(s.Successful) / float64(s.Total)
	s.AverageDuration = elapsed / time.Duration(s.Total)
	s.AverageQuality = quality / float64(s.Total)
	return s
}

// Tuning limits.
const (
	tuneMinHistory   = 5
	tuneWindow       = 10
	tuneShrink       = 0.8
	tuneGrowth       = 1.2
	tuneMinTolerance = 0.001
	tuneMaxAttempts  = 500
)

// Tune tightens cfg when the recent average quality falls short of target:
// the tolerance shrinks by a fifth, never below 0.001mm, and the attempt
// budget grows by a fifth, never above 500. It reports whether cfg changed.
// At least five recorded results are needed.
func (h *History) Tune(cfg Config, target float64) (Config, bool) {
	recent := h.Recent(tuneWindow)
	if len(recent) < tuneMinHistory {
		return cfg, false
	}
	var q float64
	for _, r := range recent {
		q += r.Quality
	}
	if q/float64(len(recent)) >= target {
		return cfg, false
	}
	cfg.Tolerance = max(tuneMinTolerance, cfg.Tolerance*tuneShrink)
	cfg.MaxMatchAttempts = min(tuneMaxAttempts, int(float64(cfg.MaxMatchAttempts)*tuneGrowth))
	return cfg, true
}
