// Package metrics defines Prometheus metrics for pumpwatch.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pumpwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumpwatch_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// EventsRecorded counts committed events by source (live, import).
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumpwatch_events_recorded_total",
			Help: "Events committed to the timeline",
		},
		[]string{"source"},
	)

	EventsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pumpwatch_events_deleted_total",
			Help: "Events removed through the deletion path",
		},
	)

	// Rejections counts refused commands by operation and error kind.
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumpwatch_rejections_total",
			Help: "Commands rejected with a structured error",
		},
		[]string{"operation", "kind"},
	)

	ImportConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pumpwatch_import_conflicts_total",
			Help: "Timeline conflicts found while reconciling imports",
		},
	)

	AuditRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumpwatch_well_audit_records_total",
			Help: "Well audit records written, by whether any field changed",
		},
		[]string{"changed"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		EventsRecorded, EventsDeleted, Rejections,
		ImportConflicts, AuditRecords,
	)
}

// Reject records a rejected command.
func Reject(operation, kind string) {
	Rejections.WithLabelValues(operation, kind).Inc()
}
