// Package metrics exposes analysis counters on a Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitehealth"

// Result labels for finished analyses.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder owns its registry so tests and multiple servers never collide on
// the global one.
type Recorder struct {
	registry *prometheus.Registry

	analyses    *prometheus.CounterVec
	duration    prometheus.Histogram
	unavailable *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of website analyses.",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one full website analysis.",
			Buckets: []float64{
				0.1, 0.25, 0.5,
				1, 2.5, 5,
				10, 30, 60, 120,
			},
		}),
		unavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_unavailable_total",
			Help:      "Number of analyses in which a metric came back null.",
		}, []string{"metric"}),
	}
}

// ObserveAnalysis records one finished analysis and the metrics it could not compute.
// A nil Recorder ignores the call.
func (r *Recorder) ObserveAnalysis(result string, elapsed time.Duration, unavailable []string) {
	if r == nil {
		return
	}

	r.analyses.WithLabelValues(result).Inc()
	r.duration.Observe(elapsed.Seconds())

	for _, name := range unavailable {
		r.unavailable.WithLabelValues(name).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry for inspection.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
