package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypath_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studypath_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studypath_http_requests_in_flight",
			Help: "API requests currently being served.",
		},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypath_cache_lookups_total",
			Help: "Cache lookups by table and result (hit, miss, expired, error).",
		},
		[]string{"table", "result"},
	)

	CacheBackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypath_cache_backend_errors_total",
			Help: "Cache backend failures by operation.",
		},
		[]string{"op"},
	)

	RemediationContentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypath_remediation_content_total",
			Help: "Remediation content produced, by origin (ai, fallback) and cache result.",
		},
		[]string{"origin", "cached"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypath_upstream_requests_total",
			Help: "Calls to upstream services by outcome (success, failure, rejected).",
		},
		[]string{"upstream", "outcome"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studypath_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		},
		[]string{"upstream"},
	)

	RecommendModelStudents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studypath_recommend_model_students",
			Help: "Number of students in the loaded recommendation model (0 when unavailable).",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		CacheLookupsTotal,
		CacheBackendErrorsTotal,
		RemediationContentTotal,
		UpstreamRequestsTotal,
		CircuitBreakerState,
		RecommendModelStudents,
	)
}
