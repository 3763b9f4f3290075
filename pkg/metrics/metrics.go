package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by principal kind and result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"kind", "result"},
	)

	// PinsIssued counts issued PINs by purpose and whether the email left the building.
	PinsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_pins_issued_total",
			Help: "Total number of verification and reset PINs issued",
		},
		[]string{"purpose", "email_sent"},
	)

	// PinVerifications counts PIN checks by purpose and result (success|failure).
	PinVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_pin_verifications_total",
			Help: "Total number of PIN verification attempts",
		},
		[]string{"purpose", "result"},
	)

	// ApplicationTransitions counts applied application status changes.
	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_application_transitions_total",
			Help: "Total number of application status transitions",
		},
		[]string{"from", "to"},
	)

	// DispatchTasks counts background tasks by kind and outcome (enqueued|succeeded|failed).
	DispatchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_dispatch_tasks_total",
			Help: "Total number of background delivery tasks",
		},
		[]string{"kind", "result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobboard_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobboard_http_in_flight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobboard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
