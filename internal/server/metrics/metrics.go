// Package metrics defines the Prometheus collectors for the transfer proxy.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

var (
	// TransferOpsTotal counts envelope operations by name and outcome.
	TransferOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropgate_transfer_operations_total",
			Help: "Transfer envelope operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// HTTPRequestDuration observes endpoint latency in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropgate_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BytesUploadedTotal counts decoded payload bytes accepted by upload.
	BytesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dropgate_bytes_uploaded_total",
			Help: "Total decoded bytes stored via upload",
		},
	)

	// VersionsPurgedTotal counts object versions and delete-markers removed.
	VersionsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dropgate_versions_purged_total",
			Help: "Object versions and delete-markers removed by purges",
		},
	)
)

// Register registers all collectors with the default registry. Safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TransferOpsTotal,
			HTTPRequestDuration,
			BytesUploadedTotal,
			VersionsPurgedTotal,
		)
	})
}
