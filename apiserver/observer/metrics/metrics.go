// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "storefront_apiserver"

// Collector is a prometheus.Collector that collects metrics about the API
// server.
type Collector struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	feedConnections prometheus.Gauge
	purchases       *prometheus.CounterVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "The number of HTTP requests served.",
			}, []string{"method", "route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "The time taken to serve an HTTP request.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"method", "route"},
		),
		feedConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "feed_connections",
				Help:      "The number of open realtime product feed connections.",
			},
		),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "purchases_total",
				Help:      "The number of purchase attempts by result.",
			}, []string{"result"},
		),
	}
}

// RequestServed records a served request.
func (c *Collector) RequestServed(method, route, code string, seconds float64) {
	c.requests.WithLabelValues(method, route, code).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

// FeedConnected records a new feed connection. The returned func records
// its disconnection.
func (c *Collector) FeedConnected() func() {
	c.feedConnections.Inc()
	return c.feedConnections.Dec
}

// PurchaseAttempted records the result of a purchase.
func (c *Collector) PurchaseAttempted(result string) {
	c.purchases.WithLabelValues(result).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.requestDuration.Describe(ch)
	c.feedConnections.Describe(ch)
	c.purchases.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.requestDuration.Collect(ch)
	c.feedConnections.Collect(ch)
	c.purchases.Collect(ch)
}
