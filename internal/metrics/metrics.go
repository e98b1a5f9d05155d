// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ReadingsCreated  prometheus.Counter
	ReadingsUpdated  prometheus.Counter
	ReadingsDeleted  prometheus.Counter
	NormalizeErrors  *prometheus.CounterVec
	ScopeDenied      prometheus.Counter
	AuthFailures     prometheus.Counter
	SessionsSwept    prometheus.Counter
	DetailsCacheHits *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReadingsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_readings_created_total",
			Help: "Total number of readings created",
		}),
		ReadingsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_readings_updated_total",
			Help: "Total number of readings updated",
		}),
		ReadingsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_readings_deleted_total",
			Help: "Total number of readings soft-deleted",
		}),
		NormalizeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugar_normalize_errors_total",
			Help: "Readings rejected while normalizing date, time or timezone",
		}, []string{"reason"}),
		ScopeDenied: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_scope_denied_total",
			Help: "Reading queries refused for anonymous callers",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_auth_failures_total",
			Help: "Total number of failed logins and token requests",
		}),
		SessionsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "sugar_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper",
		}),
		DetailsCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sugar_user_details_cache_total",
			Help: "User details cache lookups by result",
		}, []string{"result"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sugar_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
