package preload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a Hook exporting the preload activity as Prometheus counters.
type Metrics struct {
	cacheHits   prometheus.Counter
	discoveries prometheus.Counter
	targets     *prometheus.CounterVec
}

// NewMetrics creates the preload counters and registers them with registry.
// A nil registry creates unregistered counters.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "preload_cache_hits_total",
			Help: "Sub-requests answered with a preloaded response.",
		}),
		discoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "preload_discoveries_total",
			Help: "Responses carrying preload hints.",
		}),
		targets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preload_targets_total",
			Help: "Preload hints by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) CacheHit(HitEvent) {
	m.cacheHits.Inc()
}

func (m *Metrics) Discovered(e DiscoveryEvent) {
	m.discoveries.Inc()
	for _, t := range e.Targets {
		if t.Reused {
			m.targets.WithLabelValues("reused").Inc()
		} else {
			m.targets.WithLabelValues("dispatched").Inc()
		}
	}
	if len(e.Skipped) > 0 {
		m.targets.WithLabelValues("skipped").Add(float64(len(e.Skipped)))
	}
}
