package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceGauges tracks point-in-time state of the service: open sessions,
// cache occupancy and loaded templates. Counters for throughput live on
// Metrics; gauges here are set, not accumulated.
type ServiceGauges struct {
	sessionsActive   prometheus.Gauge
	requestsInFlight prometheus.GaugeVec
	cacheEntries     prometheus.Gauge
	cacheBytes       prometheus.Gauge
	templatesLoaded  prometheus.Gauge
}

var (
	defaultServiceGauges     *ServiceGauges
	defaultServiceGaugesOnce sync.Once
)

// NewServiceGauges builds a ServiceGauges recorder using the default registry.
func NewServiceGauges() *ServiceGauges {
	defaultServiceGaugesOnce.Do(func() {
		defaultServiceGauges = newServiceGauges(prometheus.DefaultRegisterer)
	})
	return defaultServiceGauges
}

// NewServiceGaugesWithRegisterer allows tests to provide a dedicated registry.
func NewServiceGaugesWithRegisterer(reg prometheus.Registerer) *ServiceGauges {
	return newServiceGauges(reg)
}

func newServiceGauges(reg prometheus.Registerer) *ServiceGauges {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ServiceGauges{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "diagram",
			Subsystem: "ws",
			Name:      "sessions_active",
			Help:      "Websocket sessions currently open",
		}),
		requestsInFlight: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "diagram",
			Subsystem: "pipeline",
			Name:      "requests_in_flight",
			Help:      "Diagram requests currently being processed, by state",
		}, []string{"state"}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "diagram",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the render cache",
		}),
		cacheBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "diagram",
			Subsystem: "cache",
			Name:      "bytes",
			Help:      "Approximate bytes held by the render cache",
		}),
		templatesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "diagram",
			Subsystem: "templates",
			Name:      "loaded",
			Help:      "SVG templates loaded at startup",
		}),
	}
}

// SetSessionsActive records the current number of open sessions.
func (g *ServiceGauges) SetSessionsActive(n int) {
	if g == nil || g.sessionsActive == nil {
		return
	}
	g.sessionsActive.Set(float64(n))
}

// SetRequestsInFlight records how many requests sit in a pipeline state.
func (g *ServiceGauges) SetRequestsInFlight(state string, n int) {
	if g == nil {
		return
	}
	gauge := g.requestsInFlight.WithLabelValues(state)
	gauge.Set(float64(n))
}

// SetCacheUsage records the cache's current entry count and byte footprint.
func (g *ServiceGauges) SetCacheUsage(entries int, bytes int64) {
	if g == nil {
		return
	}
	if g.cacheEntries != nil {
		g.cacheEntries.Set(float64(entries))
	}
	if g.cacheBytes != nil {
		g.cacheBytes.Set(float64(bytes))
	}
}

// SetTemplatesLoaded records how many templates the library holds.
func (g *ServiceGauges) SetTemplatesLoaded(n int) {
	if g == nil || g.templatesLoaded == nil {
		return
	}
	g.templatesLoaded.Set(float64(n))
}
