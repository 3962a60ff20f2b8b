// Package metrics exposes mint attempt metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geomint"

// Recorder implements mint.Recorder on a private registry.
//
// Thread-safety: safe for concurrent use; the underlying collectors are.
type Recorder struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Go runtime and
// process collectors are registered alongside the mint series.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "attempts_total",
			Help:      "Mint attempts by outcome (confirmed or failure category).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "duration_seconds",
			Help:      "Wall time from attempt start to resolution.",
			// Sepolia blocks land every ~12s; waits of several blocks are normal.
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "in_flight",
			Help:      "1 while a mint attempt is unresolved.",
		}),
	}
	r.registry.MustRegister(
		r.attempts,
		r.duration,
		r.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// AttemptStarted marks an attempt in flight.
func (r *Recorder) AttemptStarted() {
	r.inFlight.Set(1)
}

// AttemptFinished records the outcome and duration of an attempt.
func (r *Recorder) AttemptFinished(outcome string, elapsed time.Duration) {
	r.attempts.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.inFlight.Set(0)
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
