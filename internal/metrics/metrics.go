// Package metrics exposes Prometheus instrumentation for event processing and indexing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pool_scout"

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	eventDuration   prometheus.Histogram
	retriesTotal    prometheus.Counter
	matchesTotal    prometheus.Counter
	linksTotal      prometheus.Counter
	lastBlock       prometheus.Gauge
	batchesTotal    prometheus.Counter
	pools           prometheus.Gauge
	subscriptions   *prometheus.GaugeVec
	sinkWritesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Creation events processed, labeled by outcome.",
		}, []string{"outcome"}),
		eventDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "event_duration_seconds",
			Help:      "Time spent processing a single creation event, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Retry attempts after retryable failures.",
		}),
		matchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "matched_pools_total",
			Help:      "Pools that matched at least one subscription.",
		}),
		linksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "links_total",
			Help:      "Pool to subscription links created.",
		}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_processed_block",
			Help:      "Highest block whose range was fully processed.",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "batches_total",
			Help:      "Block ranges processed.",
		}),
		pools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "pools",
			Help:      "Pools currently registered.",
		}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "subscriptions",
			Help:      "Subscriptions currently registered, labeled by state.",
		}, []string{"state"}),
		sinkWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "writes_total",
			Help:      "Match batches written to the sink, labeled by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.eventsTotal,
		m.eventDuration,
		m.retriesTotal,
		m.matchesTotal,
		m.linksTotal,
		m.lastBlock,
		m.batchesTotal,
		m.pools,
		m.subscriptions,
		m.sinkWritesTotal,
	)
	return m
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveEvent records one processed event. outcome is one of matched,
// no_match, failed or cancelled.
func (m *Metrics) ObserveEvent(outcome string, d time.Duration, links int) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(outcome).Inc()
	m.eventDuration.Observe(d.Seconds())
	if outcome == "matched" {
		m.matchesTotal.Inc()
		m.linksTotal.Add(float64(links))
	}
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// ObserveBatch records a completed block range.
func (m *Metrics) ObserveBatch(toBlock uint64) {
	if m == nil {
		return
	}
	m.batchesTotal.Inc()
	m.lastBlock.Set(float64(toBlock))
}

// SetRegistrySize publishes the current registry sizes.
func (m *Metrics) SetRegistrySize(pools, active, inactive int) {
	if m == nil {
		return
	}
	m.pools.Set(float64(pools))
	m.subscriptions.WithLabelValues("active").Set(float64(active))
	m.subscriptions.WithLabelValues("inactive").Set(float64(inactive))
}

func (m *Metrics) ObserveSinkWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sinkWritesTotal.WithLabelValues(result).Inc()
}
