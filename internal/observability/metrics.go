package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APICollector bundles Prometheus metrics for the HTTP API surface and
// the tracking engine gauges.
type APICollector struct {
	gatherer prometheus.Gatherer

	APIRequests  *prometheus.CounterVec
	APIDurations *prometheus.HistogramVec

	CatalogTargets prometheus.Gauge
	PassesCached   prometheus.Gauge
	StreamClients  prometheus.Gauge
}

// NewAPICollector registers API Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAPICollector(reg prometheus.Registerer) (*APICollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total number of handled API requests, labeled by route, method, and HTTP status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "api_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	targets, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_targets",
		Help: "Current number of targets in the catalog.",
	}), "catalog_targets")
	if err != nil {
		return nil, err
	}
	passes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passes_cached",
		Help: "Current number of predicted passes held by the engine.",
	}), "passes_cached")
	if err != nil {
		return nil, err
	}
	streams, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stream_clients",
		Help: "Currently connected streaming clients (SSE and WebSocket).",
	}), "stream_clients")
	if err != nil {
		return nil, err
	}

	return &APICollector{
		gatherer:       gatherer,
		APIRequests:    requests,
		APIDurations:   durations,
		CatalogTargets: targets,
		PassesCached:   passes,
		StreamClients:  streams,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *APICollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetEngineCounts satisfies the engine's metrics recorder interface so
// state mutators can drive the gauges directly.
func (c *APICollector) SetEngineCounts(targets, passesCached int) {
	if c == nil {
		return
	}
	if c.CatalogTargets != nil {
		c.CatalogTargets.Set(float64(targets))
	}
	if c.PassesCached != nil {
		c.PassesCached.Set(float64(passesCached))
	}
}

// StreamOpened bumps the connected-streams gauge.
func (c *APICollector) StreamOpened() {
	if c == nil || c.StreamClients == nil {
		return
	}
	c.StreamClients.Inc()
}

// StreamClosed decrements the connected-streams gauge.
func (c *APICollector) StreamClosed() {
	if c == nil || c.StreamClients == nil {
		return
	}
	c.StreamClients.Dec()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
