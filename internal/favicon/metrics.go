package favicon

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns the Prometheus collectors for the resolution engine. It is
// passed explicitly into the Resolver and the batch orchestrator so the core
// stays testable without global registry state.
type Metrics struct {
	resolutions  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	probes       *prometheus.CounterVec
	duration     prometheus.Histogram
	inFlight     prometheus.Gauge
}

// NewMetrics registers the resolver collectors against reg. A nil reg falls
// back to the default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "favicon_resolutions_total",
			Help: "Completed domain resolutions partitioned by terminal status.",
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "favicon_cache_lookups_total",
			Help: "Cache lookups partitioned by hit/negative/miss.",
		}, []string{"result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "favicon_network_requests_total",
			Help: "Network operations partitioned by kind (head, ranged_get, page) and scheme.",
		}, []string{"kind", "scheme"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "favicon_resolution_duration_seconds",
			Help:    "Wall time per domain resolution.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "favicon_resolutions_in_flight",
			Help: "Resolutions currently running.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		m.resolutions,
		m.cacheLookups,
		m.probes,
		m.duration,
		m.inFlight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register resolver collector: %w", err)
		}
	}
	return m, nil
}

// ObserveResolution records one finished resolution.
func (m *Metrics) ObserveResolution(status Status, dur time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(status)).Inc()
	m.duration.Observe(dur.Seconds())
}

// ObserveCacheLookup records a cache lookup outcome: "hit", "negative" or "miss".
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRequest records one outbound network operation.
func (m *Metrics) ObserveRequest(kind, scheme string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(kind, scheme).Inc()
}

// IncInFlight marks a resolution as started.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// DecInFlight marks a resolution as finished.
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
