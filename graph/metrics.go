package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wudi/colorkit/observability"
)

// Metrics holds the graph collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Pulls counts plug pulls by upstream filter.
	Pulls *prometheus.CounterVec
	// CacheHits counts pulls served from socket data.
	CacheHits *prometheus.CounterVec
	// Retries counts re-issued pulls.
	Retries prometheus.Counter
	// RunDuration measures filter run calls by filter and result.
	RunDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Pulls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.MetricNamespace,
			Subsystem: observability.MetricGraphSubsystem,
			Name:      observability.MetricPulls,
			Help:      "Plug pulls by upstream filter.",
		}, []string{"filter"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.MetricNamespace,
			Subsystem: observability.MetricGraphSubsystem,
			Name:      observability.MetricCacheHits,
			Help:      "Pulls answered from socket data.",
		}, []string{"filter"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: observability.MetricNamespace,
			Subsystem: observability.MetricGraphSubsystem,
			Name:      observability.MetricRetries,
			Help:      "Pulls re-issued after a retry result.",
		}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: observability.MetricNamespace,
			Subsystem: observability.MetricGraphSubsystem,
			Name:      observability.MetricRunDuration,
			Help:      "Duration of filter run calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"filter", "result"}),
	}
}

func (m *Metrics) pull(filter string, hit bool) {
	if m == nil {
		return
	}
	m.Pulls.WithLabelValues(filter).Inc()
	if hit {
		m.CacheHits.WithLabelValues(filter).Inc()
	}
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) run(filter string, start time.Time, res Result, err error) {
	if m == nil {
		return
	}
	label := res.String()
	if err != nil {
		label = "error"
	}
	m.RunDuration.WithLabelValues(filter, label).Observe(time.Since(start).Seconds())
}
