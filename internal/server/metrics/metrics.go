// Package metrics collects and exposes Prometheus metrics for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the counters the HTTP layer and realtime hub report into.
type Collector struct {
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
	walletEvents      prometheus.Counter
	realtimeSubs      prometheus.Gauge
	droppedDeliveries prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soundcircle_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soundcircle_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		walletEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soundcircle_wallet_events_total",
			Help: "Wallet change notifications received from the database.",
		}),
		realtimeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soundcircle_realtime_subscribers",
			Help: "Currently connected realtime subscribers.",
		}),
		droppedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soundcircle_realtime_dropped_deliveries_total",
			Help: "Wallet events dropped because a subscriber was too slow.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.walletEvents,
		c.realtimeSubs,
		c.droppedDeliveries,
	)
	return c
}

func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordWalletEvent()      { c.walletEvents.Inc() }
func (c *Collector) SubscriberAdded()        { c.realtimeSubs.Inc() }
func (c *Collector) SubscriberRemoved()      { c.realtimeSubs.Dec() }
func (c *Collector) RecordDroppedDelivery()  { c.droppedDeliveries.Inc() }

// Handler returns the /metrics endpoint for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
