package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the Harmony server.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        *prometheus.CounterVec
	errorsTotal          prometheus.Counter
	eventsPublishedTotal *prometheus.CounterVec
	telemetryDropped     prometheus.Counter
	directorCutsApplied  prometheus.Counter
	handlerPanicsTotal   prometheus.Counter
	subscriptions        prometheus.Gauge
	viewers              prometheus.Gauge
	dataPlaneConnected   prometheus.Gauge
}

// New creates and registers the Harmony metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_requests_total",
			Help: "HTTP requests received, by chi route pattern",
		}, []string{"route"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		eventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_events_published_total",
			Help: "Events published on the bus, by kind",
		}, []string{"kind"}),
		telemetryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_telemetry_dropped_total",
			Help: "Telemetry snapshots suppressed by the simulated poor network",
		}),
		directorCutsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_director_cuts_applied_total",
			Help: "Director commands that changed a rendered angle",
		}),
		handlerPanicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harmony_handler_panics_total",
			Help: "Panics recovered from event handlers and producer ticks",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harmony_bus_subscriptions",
			Help: "Live subscriptions on the event bus",
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harmony_ws_viewers",
			Help: "Connected websocket viewers",
		}),
		dataPlaneConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harmony_dataplane_connected",
			Help: "1 when the simulated data plane is connected",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.eventsPublishedTotal,
		m.telemetryDropped,
		m.directorCutsApplied,
		m.handlerPanicsTotal,
		m.subscriptions,
		m.viewers,
		m.dataPlaneConnected,
	)
	return m
}

// IncRequests counts one request for route. Unmatched requests use
// "unmatched" so scanners cannot grow the label set.
func (m *Metrics) IncRequests(route string) {
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncEventsPublished counts one published event of kind.
func (m *Metrics) IncEventsPublished(kind string) {
	m.eventsPublishedTotal.WithLabelValues(kind).Inc()
}

// IncTelemetryDropped counts one suppressed telemetry snapshot.
func (m *Metrics) IncTelemetryDropped() {
	m.telemetryDropped.Inc()
}

// IncDirectorCutsApplied counts one applied director cut.
func (m *Metrics) IncDirectorCutsApplied() {
	m.directorCutsApplied.Inc()
}

// IncHandlerPanics counts one recovered panic.
func (m *Metrics) IncHandlerPanics() {
	m.handlerPanicsTotal.Inc()
}

// SetSubscriptions sets the bus subscriptions gauge.
func (m *Metrics) SetSubscriptions(n int) {
	m.subscriptions.Set(float64(n))
}

// SetViewers sets the websocket viewers gauge.
func (m *Metrics) SetViewers(n int) {
	m.viewers.Set(float64(n))
}

// SetDataPlaneConnected sets the data plane gauge to 1 or 0.
func (m *Metrics) SetDataPlaneConnected(connected bool) {
	if connected {
		m.dataPlaneConnected.Set(1)
		return
	}
	m.dataPlaneConnected.Set(0)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
