// Package metrics provides Prometheus instrumentation for the storage layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// StoreCalls counts guarded backing-store calls by operation and outcome.
	StoreCalls *prometheus.CounterVec
	// StoreCallDuration tracks guarded call latency, retries included.
	StoreCallDuration *prometheus.HistogramVec
	// StoreRetries counts retry attempts after a transient failure.
	StoreRetries *prometheus.CounterVec
	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState prometheus.Gauge
	// SnapshotServed counts reads answered from the offline snapshot.
	SnapshotServed *prometheus.CounterVec
	// Ingested counts inbound platform events by result.
	Ingested *prometheus.CounterVec
	// IdentityCacheSize is the number of cached external id bindings.
	IdentityCacheSize prometheus.Gauge
	// BusDropped counts bus events dropped on full subscribers.
	BusDropped *prometheus.CounterVec
	// RPCs counts API calls by method and status code.
	RPCs *prometheus.CounterVec
	// RPCDuration tracks API call latency by method.
	RPCDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		StoreCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_store_calls_total",
			Help: "Backing store calls by operation and outcome",
		}, []string{"op", "outcome"}),
		StoreCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lawdesk_store_call_duration_seconds",
			Help:    "Backing store call duration in seconds, retries included",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_store_retries_total",
			Help: "Backing store retry attempts",
		}, []string{"op"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "lawdesk_store_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		}),
		SnapshotServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_snapshot_reads_total",
			Help: "Reads answered from the offline snapshot",
		}, []string{"key"}),
		Ingested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_ingested_events_total",
			Help: "Inbound platform events by result",
		}, []string{"result"}),
		IdentityCacheSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "lawdesk_identity_cache_entries",
			Help: "External id bindings held in the identity cache",
		}),
		BusDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_bus_dropped_events_total",
			Help: "Bus events dropped because a subscriber was full",
		}, []string{"kind"}),
		RPCs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawdesk_rpc_requests_total",
			Help: "API calls by method and gRPC status code",
		}, []string{"method", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lawdesk_rpc_duration_seconds",
			Help:    "API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an http.Handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
