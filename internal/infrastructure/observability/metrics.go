package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events handed to the broker",
		},
		[]string{"topic", "event_type", "status"},
	)

	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_notifications_total",
			Help: "Notifications recorded for subscribers of a subject",
		},
	)

	SubjectCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subject_cache_lookups_total",
			Help: "Subject catalogue cache lookups",
		},
		[]string{"result"},
	)
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		RepositoryCalls,
		RepositoryDuration,
		RequestCounter,
		RequestDuration,
		EventsPublished,
		NotificationsSent,
		SubjectCacheLookups,
	)
}

// ObserveRepository records one repository call. Use it as
// defer observability.ObserveRepository("UserRepository.Create", time.Now(), &err).
func ObserveRepository(method string, start time.Time, errp *error) {
	status := "ok"
	if errp != nil && *errp != nil {
		status = "error"
	}
	RepositoryCalls.WithLabelValues(method, status).Inc()
	RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
