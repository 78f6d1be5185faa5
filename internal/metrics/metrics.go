// Package metrics defines the Prometheus instrumentation for the
// transfer subsystem. Metrics register themselves via promauto; the
// /metrics endpoint is served by promhttp in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// SessionsInitiatedTotal counts upload sessions created
	SessionsInitiatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bioshelf_upload_sessions_initiated_total",
			Help: "Total number of resumable upload sessions initiated",
		},
	)

	// SessionsCompletedTotal counts sessions promoted to artifacts
	SessionsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bioshelf_upload_sessions_completed_total",
			Help: "Total number of upload sessions completed",
		},
	)

	// SessionsCanceledTotal counts canceled sessions by origin (client, janitor)
	SessionsCanceledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioshelf_upload_sessions_canceled_total",
			Help: "Total number of upload sessions canceled",
		},
		[]string{"origin"},
	)

	// ChunksTotal counts chunk writes by status (success, failure)
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioshelf_upload_chunks_total",
			Help: "Total number of upload chunks received",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts downloads by kind (full, partial) and status
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioshelf_downloads_total",
			Help: "Total number of artifact downloads",
		},
		[]string{"kind", "status"},
	)

	// ImportsTotal counts external archive imports by status
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioshelf_imports_total",
			Help: "Total number of external archive imports",
		},
		[]string{"status"},
	)

	// ErrorsTotal counts application errors by code
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bioshelf_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"code"},
	)
)

// Histogram metrics (distributions)
var (
	// ChunkSizeBytes tracks the distribution of received chunk sizes
	ChunkSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bioshelf_chunk_size_bytes",
			Help: "Distribution of received chunk sizes in bytes",
			Buckets: []float64{
				1024,      // 1 KB
				65536,     // 64 KB
				262144,    // 256 KB
				1048576,   // 1 MB
				2097152,   // 2 MB
				10485760,  // 10 MB
				20971520,  // 20 MB
			},
		},
	)

	// ArtifactSizeBytes tracks the distribution of completed artifact sizes
	ArtifactSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bioshelf_artifact_size_bytes",
			Help: "Distribution of completed artifact sizes in bytes",
			Buckets: []float64{
				1024,         // 1 KB
				102400,       // 100 KB
				1048576,      // 1 MB
				10485760,     // 10 MB
				104857600,    // 100 MB
				1073741824,   // 1 GB
				10737418240,  // 10 GB
			},
		},
	)

	// DownloadBytesServed tracks bytes served per download response
	DownloadBytesServed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bioshelf_download_bytes_served",
			Help: "Distribution of bytes served per download response",
			Buckets: []float64{
				1024,        // 1 KB
				102400,      // 100 KB
				1048576,     // 1 MB
				10485760,    // 10 MB
				104857600,   // 100 MB
				1073741824,  // 1 GB
			},
		},
	)
)
