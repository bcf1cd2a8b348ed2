// Package observability holds the Prometheus collectors of the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nepway"

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Seat booking attempts by outcome"},
		[]string{"result"},
	)
	AcceptancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "request_acceptances_total", Help: "Ride request acceptance attempts by outcome"},
		[]string{"result"},
	)
	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "saga_compensations_total", Help: "Saga compensating actions by step and outcome"},
		[]string{"saga", "step", "result"},
	)
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_status_transitions_total", Help: "Applied ride status transitions"},
		[]string{"from", "to", "actor"},
	)
	ExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "expired_records_total", Help: "Records moved to expired by the sweeper"},
		[]string{"kind"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Notification deliveries by channel and outcome"},
		[]string{"channel", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result labels shared by the outcome counters.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)
