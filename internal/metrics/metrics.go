// Package metrics exposes postflow's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so callers never branch on
// whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Publish results used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry        *prometheus.Registry
	publishAttempts *prometheus.CounterVec
	publishDuration prometheus.Histogram
	transitions     *prometheus.CounterVec
	cycles          prometheus.Counter
	postsByStatus   *prometheus.GaugeVec
	lastCycle       prometheus.Gauge
}

// New registers postflow collectors plus Go runtime and process collectors
// under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_attempts_total",
			Help:      "Publish attempts by result and error kind.",
		}, []string{"result", "kind"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent in the platform publish call.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_transitions_total",
			Help:      "Post status transitions by target status.",
		}, []string{"to"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_cycles_total",
			Help:      "Completed publish worker cycles.",
		}),
		postsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "posts",
			Help:      "Posts per status as of the last cycle.",
		}, []string{"status"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last publish cycle finished.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.publishAttempts,
		m.publishDuration,
		m.transitions,
		m.cycles,
		m.postsByStatus,
		m.lastCycle,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePublish records one publish attempt. kind is the error
// classification for failures and empty for successes.
func (m *Metrics) ObservePublish(result, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result, kind).Inc()
	if result != ResultSkipped {
		m.publishDuration.Observe(elapsed.Seconds())
	}
}

// ObserveTransition counts a status change into to.
func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

// ObserveCycle records a finished worker cycle and the per-status counts
// observed at its end.
func (m *Metrics) ObserveCycle(finished time.Time, counts map[string]int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.lastCycle.Set(float64(finished.Unix()))
	for status, count := range counts {
		m.postsByStatus.WithLabelValues(status).Set(float64(count))
	}
}
