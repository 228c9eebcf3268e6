package stream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports directory and request counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	regions  *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	tick     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		regions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxelstream_regions",
			Help: "Regions tracked by the directory, by state.",
		}, []string{"state"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelstream_requests_total",
			Help: "Requests accepted by background workers, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelstream_failures_total",
			Help: "Failed generate, load, save and mesh operations, by kind.",
		}, []string{"kind"}),
		tick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelstream_tick_seconds",
			Help:    "Duration of one streaming tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	reg.MustRegister(m.regions, m.requests, m.failures, m.tick)
	return m
}

func (m *Metrics) request(kind string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind).Inc()
}

func (m *Metrics) failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observe(counts map[State]int, d time.Duration) {
	if m == nil {
		return
	}
	for _, s := range AllStates() {
		m.regions.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	m.tick.Observe(d.Seconds())
}
