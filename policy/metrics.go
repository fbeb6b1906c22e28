package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts retry decisions. It is a prometheus.Collector; register it
// once and share it between the chains that should report into it.
type Metrics struct {
	failures prometheus.Counter
	giveUps  prometheus.Counter
	delays   prometheus.Histogram
}

// NewMetrics creates the retry metrics under the given namespace. labels are
// attached to every series, which lets several call sites share one registry.
func NewMetrics(namespace string, labels prometheus.Labels) *Metrics {
	return &Metrics{
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retry",
			Name:        "failed_attempts_total",
			Help:        "Total number of failed attempts seen by the retry policy",
			ConstLabels: labels,
		}),
		giveUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retry",
			Name:        "give_ups_total",
			Help:        "Total number of operations the retry policy gave up on",
			ConstLabels: labels,
		}),
		delays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retry",
			Name:        "delay_seconds",
			Help:        "Delay scheduled before each retry",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 12),
			ConstLabels: labels,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.failures.Describe(ch)
	m.giveUps.Describe(ch)
	m.delays.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.failures.Collect(ch)
	m.giveUps.Collect(ch)
	m.delays.Collect(ch)
}

// Policy returns a pass-through unit that records into m. Place it ahead of
// the units that may give up so that their decisions are counted.
func (m *Metrics) Policy() Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		m.failures.Inc()
		d, err := delegate(s, next)
		if err != nil {
			m.giveUps.Inc()
			return 0, err
		}
		m.delays.Observe(d.Seconds())
		return d, nil
	}
}
