package assembly

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "joinery_assembly_"

// Metrics exports assembly outcomes to Prometheus.
type Metrics struct {
	total    *prometheus.CounterVec
	attempts prometheus.Histogram
	duration prometheus.Histogram
	quality  prometheus.Histogram
	overlap  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, or with
// the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "total",
			Help: "Assemblies by outcome (ok or failure code).",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "attempts",
			Help:    "Candidate alignments tried per assembly.",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "duration_seconds",
			Help:    "Wall time per assembly.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		quality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "quality",
			Help:    "Quality of successful assemblies.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		overlap: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "rejected_overlap_mm3",
			Help:    "Interference volume of rejected candidates.",
			Buckets: prometheus.ExponentialBuckets(0.001, 10, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.total, m.attempts, m.duration, m.quality, m.overlap} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveAssembly records r.
func (m *Metrics) ObserveAssembly(r Result) {
	outcome := "ok"
	if !r.Success {
		outcome = string(r.Code())
	}
	m.total.WithLabelValues(outcome).Inc()
	m.attempts.Observe(float64(len(r.Attempts)))
	m.duration.Observe(r.Duration.Seconds())
	if r.Success {
		m.quality.Observe(r.Quality)
	}
	for _, a := range r.Attempts {
		if a.Outcome == Collided {
			m.overlap.Observe(a.Collision.OverlapVolume)
		}
	}
}
