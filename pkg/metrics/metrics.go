package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Custom histogram buckets optimized for API response times ranging from milliseconds to 30+ seconds.
	// The upper buckets matter for OpenAI chat-completion calls which routinely take 5-20s.
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Database Metrics (Postgres repositories)
	DBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	// External Provider Metrics
	StripeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stripe_client_operation_duration_seconds",
			Help:    "Stripe API operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	OpenAIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openai_client_operation_duration_seconds",
			Help:    "OpenAI API operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	StorageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_client_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	// Business Metrics
	CheckoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_checkout_sessions_total",
			Help: "Total number of checkout sessions created",
		},
		[]string{"session_type", "status"},
	)

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_payment_verifications_total",
			Help: "Total number of payment verification attempts",
		},
		[]string{"result"},
	)

	DiscountValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_discount_validations_total",
			Help: "Total number of discount code validations",
		},
		[]string{"result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_stripe_webhook_events_total",
			Help: "Total number of Stripe webhook events processed",
		},
		[]string{"event_type", "status"},
	)

	CoachTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_coach_turns_total",
			Help: "Total number of AI coaching turns",
		},
		[]string{"session_type", "status"},
	)

	EntitlementChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_entitlement_checks_total",
			Help: "Total number of Pro entitlement checks",
		},
		[]string{"session_type", "result"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_emails_sent_total",
			Help: "Total number of transactional emails sent",
		},
		[]string{"template", "status"},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_sessions_completed_total",
			Help: "Total number of coaching sessions completed",
		},
		[]string{"session_type"},
	)

	VoiceBridgeConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_voice_bridge_connections_total",
			Help: "Total number of voice bridge websocket connections",
		},
		[]string{"status"},
	)

	ErrorReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_error_reports_total",
			Help: "Total number of error reports captured",
		},
		[]string{"error_code"},
	)

	AuthLoginRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talendro_auth_login_requests_total",
			Help: "Total number of magic-link login requests",
		},
		[]string{"status"},
	)

	// Infrastructure Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
