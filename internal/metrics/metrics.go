// Package metrics exposes the platform's Prometheus gauges and
// counters: live grain count/size, bridge request latency, and
// supervisor starts.
//
// Grounded on internal/monitoring/monitoring_system.go's metric
// catalog in the teacher repo, re-expressed against
// github.com/prometheus/client_golang instead of the teacher's
// hand-rolled snapshot struct, since the rest of the pack reaches for
// a real metrics library rather than in-process aggregation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the platform emits, registered against
// a caller-supplied prometheus.Registerer so cmd/* entrypoints can
// choose the default registry or an isolated one in tests.
type Registry struct {
	GrainsRunning     prometheus.Gauge
	GrainStorageBytes *prometheus.GaugeVec
	SupervisorStarts  *prometheus.CounterVec
	BridgeLatency     *prometheus.HistogramVec
	PackageInstalls   *prometheus.CounterVec
}

// NewRegistry constructs and registers all metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		GrainsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sandstorm",
			Name:      "grains_running",
			Help:      "Number of grain supervisors currently running.",
		}),
		GrainStorageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sandstorm",
			Name:      "grain_storage_bytes",
			Help:      "Bytes used by a grain's on-disk storage.",
		}, []string{"grain_id"}),
		SupervisorStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sandstorm",
			Name:      "supervisor_starts_total",
			Help:      "Count of supervisor start attempts by outcome.",
		}, []string{"outcome"}),
		BridgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sandstorm",
			Name:      "bridge_request_duration_seconds",
			Help:      "Latency of HTTP<->WebSession bridge requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
		PackageInstalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sandstorm",
			Name:      "package_installs_total",
			Help:      "Count of package install attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.GrainsRunning,
		r.GrainStorageBytes,
		r.SupervisorStarts,
		r.BridgeLatency,
		r.PackageInstalls,
	)
	return r
}
