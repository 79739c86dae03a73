// Package metrics exposes the Prometheus collectors for the load
// balancer, following the teacher's internal/metrics/metrics.go
// package-level promauto var-block convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeLatency tracks round-trip time of Status Probe requests.
	// Labeled by (network, kind), not by individual URL, to keep
	// cardinality bounded when remote manifests rotate hostnames
	// (SPEC_FULL §9).
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpclb_probe_latency_seconds",
			Help:    "Latency of Status Probe round-trips",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "kind"},
	)

	// ProbeFailuresTotal counts probe round-trips that ended with the
	// endpoint marked failed (non-OK, malformed body, timeout, or
	// transport error).
	ProbeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpclb_probe_failures_total",
			Help: "Status Probe round-trips that marked an endpoint failed",
		},
		[]string{"network", "kind"},
	)

	// DispatcherRetriesTotal counts Dispatcher failover retries.
	DispatcherRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpclb_dispatcher_retries_total",
			Help: "Dispatcher retries after marking the active endpoint failed",
		},
		[]string{"network", "kind"},
	)

	// ActiveEndpointIndex reports the index of the active endpoint
	// within its kind's list, -1 when no endpoint is active.
	ActiveEndpointIndex = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rpclb_active_endpoint_index",
			Help: "Index of the active endpoint within endpoints[kind], -1 if none",
		},
		[]string{"network", "kind"},
	)
)
