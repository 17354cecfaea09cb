// Package metrics exposes adoption outcomes as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "embedadopt"

// Metrics holds the adoption collectors and the registry they live in. It
// implements adopter.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	hosts      *prometheus.CounterVec
	adopted    prometheus.Counter
	skipped    *prometheus.CounterVec
	walkTiming prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosts_processed_total",
			Help:      "Host records processed, by result.",
		}, []string{"result"}),
		adopted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_adopted_total",
			Help:      "Embedded blocks attached to a host.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Embedded identifiers not adopted, by reason.",
		}, []string{"reason"}),
		walkTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "walk_duration_seconds",
			Help:      "Time spent collecting identifiers for one host.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.hosts, m.adopted, m.skipped, m.walkTiming)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HostProcessed counts one host with the given result.
func (m *Metrics) HostProcessed(result string) {
	m.hosts.WithLabelValues(result).Inc()
}

// BlocksAdopted adds n adopted blocks.
func (m *Metrics) BlocksAdopted(n int) {
	if n > 0 {
		m.adopted.Add(float64(n))
	}
}

// CandidateSkipped counts one identifier that was not adopted.
func (m *Metrics) CandidateSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

// WalkObserved records the duration of one walk.
func (m *Metrics) WalkObserved(d time.Duration) {
	m.walkTiming.Observe(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format to path,
// for the node exporter's textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
