package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	rosterStudents       *prometheus.HistogramVec
	realtimeConnections  prometheus.Gauge
	realtimeEventsTotal  *prometheus.CounterVec
	uploadsTotal         *prometheus.CounterVec
	uploadsRejectedTotal *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instructor_api_requests_total",
			Help: "Total number of instructor API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "instructor_api_latency_seconds",
			Help:    "Latency distribution for instructor API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instructor_api_errors_total",
			Help: "Total number of error responses returned by instructor endpoints.",
		}, []string{"method", "route", "status"})

		rosterStudents = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roster_students",
			Help:    "Distinct students aggregated per roster request.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"})

		realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Dashboard websocket connections currently open.",
		})

		realtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Roster refetch signals delivered, by origin.",
		}, []string{"origin"})

		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Files relayed to the media host, by kind.",
		}, []string{"kind"})

		uploadsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploads_rejected_total",
			Help: "Uploads refused before reaching the media host.",
		}, []string{"kind", "reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Time spent validating and relaying uploads.",
			Buckets: prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			rosterStudents,
			realtimeConnections, realtimeEventsTotal,
			uploadsTotal, uploadsRejectedTotal, uploadLatencySeconds,
		)
	})
}

// APIRequests exposes the counter for instructor requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for instructor requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for instructor error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// RosterStudents exposes the roster size histogram.
func RosterStudents() *prometheus.HistogramVec {
	RegisterMetrics()
	return rosterStudents
}

// RealtimeConnections exposes the open websocket gauge.
func RealtimeConnections() prometheus.Gauge {
	RegisterMetrics()
	return realtimeConnections
}

// RealtimeEvents exposes the delivered event counter.
func RealtimeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsTotal
}

// Uploads exposes the successful upload counter.
func Uploads() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsTotal
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
