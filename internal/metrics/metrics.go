package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "torrentplay"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of sessions currently in the registry.",
	})

	CompletedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "completed_sessions",
		Help:      "Number of registered sessions whose transfer is complete.",
	})

	ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_streams",
		Help:      "Number of stream readers currently open.",
	})

	StreamBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_bytes_total",
		Help:      "Bytes written to stream clients by source (live or disk).",
	}, []string{"source"})

	RangePendingWaitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "range_pending_waits_total",
		Help:      "Reads that had to wait for bytes still being downloaded.",
	})

	RangePendingTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "range_pending_timeouts_total",
		Help:      "Reads that gave up waiting for bytes still being downloaded.",
	})

	SessionEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_evictions_total",
		Help:      "Total number of evicted sessions.",
	})

	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Search requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	SearchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_hits_total",
		Help:      "Search requests answered from cache.",
	})

	DownloadedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes",
		Help:      "Bytes completed across all registered sessions.",
	})

	StorageFreeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "storage_free_bytes",
		Help:      "Free bytes on the filesystem holding the storage directory.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		CompletedSessions,
		ActiveStreams,
		StreamBytesTotal,
		RangePendingWaitsTotal,
		RangePendingTimeoutsTotal,
		SessionEvictionsTotal,
		SearchRequestsTotal,
		SearchCacheHitsTotal,
		DownloadedBytes,
		StorageFreeBytes,
	)
}
