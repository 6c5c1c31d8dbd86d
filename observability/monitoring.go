package observability

import (
	"net/http"
	"time"
	"whirl/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes the live messaging path as Prometheus metrics.
type Collector struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	framesReceived    *prometheus.CounterVec
	framesRejected    *prometheus.CounterVec
	deliveriesDropped prometheus.Counter
	historyFailures   prometheus.Counter
	dispatchLatency   *prometheus.HistogramVec

	// process gauges, refreshed by the heartbeat worker
	residentMemory prometheus.Gauge
	cpuPercent     prometheus.Gauge
	connections    prometheus.Gauge
}

// NewCollector builds the collector and registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whirl_connections_opened_total",
			Help: "Transports accepted since start.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whirl_connections_closed_total",
			Help: "Connections cleaned up since start.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whirl_frames_received_total",
			Help: "Decoded inbound frames by payload type.",
		}, []string{"type"}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whirl_frames_rejected_total",
			Help: "Inbound frames answered with an ERROR, by reason.",
		}, []string{"reason"}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whirl_deliveries_dropped_total",
			Help: "Outbound frames dropped because the peer was gone or saturated.",
		}),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whirl_history_failures_total",
			Help: "History appends or replays that failed.",
		}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whirl_dispatch_latency_seconds",
			Help:    "Time spent handling one inbound frame.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		residentMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whirl_process_resident_memory_bytes",
			Help: "Resident set size of the server process.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whirl_process_cpu_percent",
			Help: "CPU usage of the server process.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whirl_connections",
			Help: "Live connections, authenticated or not.",
		}),
	}

	reg.MustRegister(
		c.connectionsOpened,
		c.connectionsClosed,
		c.framesReceived,
		c.framesRejected,
		c.deliveriesDropped,
		c.historyFailures,
		c.dispatchLatency,
		c.residentMemory,
		c.cpuPercent,
		c.connections,
	)
	return c
}

func (c *Collector) ConnectionOpened() { c.connectionsOpened.Inc() }

func (c *Collector) ConnectionClosed() { c.connectionsClosed.Inc() }

func (c *Collector) FrameReceived(t domain.PayloadType) {
	c.framesReceived.WithLabelValues(t.String()).Inc()
}

func (c *Collector) FrameRejected(reason string) {
	c.framesRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) DeliveryDropped() { c.deliveriesDropped.Inc() }

func (c *Collector) HistoryFailed() { c.historyFailures.Inc() }

func (c *Collector) DispatchLatency(t domain.PayloadType, d time.Duration) {
	c.dispatchLatency.WithLabelValues(t.String()).Observe(d.Seconds())
}

// ProcessStats overwrites the process gauges with the latest sample.
func (c *Collector) ProcessStats(rssBytes uint64, cpuPercent float64, connections int) {
	c.residentMemory.Set(float64(rssBytes))
	c.cpuPercent.Set(cpuPercent)
	c.connections.Set(float64(connections))
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
