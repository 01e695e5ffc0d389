// Package metrics defines the Prometheus instrumentation for the gateway:
// HTTP surface, backend RPC calls, dispatch fan-out, maintenance
// auto-pause sweeps, transfer jobs, and HLS transcode jobs. Grounded on
// the teacher's internal/metrics/metrics.go (both the torrent-engine and
// torrent-search variants), keeping its flat var-block-plus-Register
// shape and renaming every metric for this domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	BackendRPCTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "backend_rpc_total",
		Help:      "Total RPC calls made to torrent backends by backend kind, method and result status.",
	}, []string{"kind", "method", "status"})

	BackendRPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "backend_rpc_duration_seconds",
		Help:      "Backend RPC call duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"kind", "method"})

	BackendHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "backend_healthy",
		Help:      "Whether a backend's most recent health probe succeeded (1) or failed (0).",
	}, []string{"backend_id"})

	DispatchFanoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "dispatch_fanout_total",
		Help:      "Total dispatch operations fanned out across enabled backends by operation and result status.",
	}, []string{"operation", "status"})

	MaintenanceSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "maintenance_sweeps_total",
		Help:      "Total maintenance scheduler ticks completed.",
	})

	MaintenanceAutoPausedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "maintenance_auto_paused_total",
		Help:      "Total torrents auto-paused by the seed-duration maintenance sweep, by backend id.",
	}, []string{"backend_id"})

	TransferJobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "transfer_jobs_active",
		Help:      "Number of currently active transfer jobs.",
	})

	TransferJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transfer_jobs_total",
		Help:      "Total transfer jobs completed by transport and result status.",
	}, []string{"transport", "status"})

	TransferBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transfer_bytes_total",
		Help:      "Total bytes copied by transfer jobs, by transport.",
	}, []string{"transport"})

	HLSActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "hls_active_jobs",
		Help:      "Number of currently active HLS transcode jobs.",
	})

	HLSJobStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "hls_job_starts_total",
		Help:      "Total number of HLS transcode jobs started.",
	})

	HLSJobFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "hls_job_failures_total",
		Help:      "Total number of HLS transcode job failures.",
	})

	HLSEncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "hls_encode_duration_seconds",
		Help:      "Duration of completed FFmpeg encoding jobs in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	HLSJobsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "hls_jobs_swept_total",
		Help:      "Total number of HLS jobs terminated by the idle janitor.",
	})

	WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "webhook_deliveries_total",
		Help:      "Total webhook delivery attempts by result status.",
	}, []string{"status"})

	EventBusDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "event_bus_dropped_total",
		Help:      "Total events dropped because a subscriber's buffer was full.",
	})
)

// Register adds every collector in this package to reg. Call it once at
// startup with the global prometheus.Registerer (or a dedicated registry
// when the teacher's test style needs isolation from the default one).
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BackendRPCTotal,
		BackendRPCDuration,
		BackendHealthy,
		DispatchFanoutTotal,
		MaintenanceSweepsTotal,
		MaintenanceAutoPausedTotal,
		TransferJobsActive,
		TransferJobsTotal,
		TransferBytesTotal,
		HLSActiveJobs,
		HLSJobStartsTotal,
		HLSJobFailuresTotal,
		HLSEncodeDuration,
		HLSJobsSweptTotal,
		WebhookDeliveriesTotal,
		EventBusDroppedTotal,
	)
}
