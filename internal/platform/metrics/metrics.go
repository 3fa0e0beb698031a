package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec

	// Serial allocation metrics
	SerialsAllocated  *prometheus.CounterVec
	AllocatorRetries  prometheus.Counter
	AllocatorLockWait prometheus.Histogram

	// Access lifecycle metrics
	AccessRequestsCreated *prometheus.CounterVec
	RequestsDecided       *prometheus.CounterVec
	GrantsRevoked         prometheus.Counter
	RateLimitRejections   prometheus.Counter

	// Verification gate metrics
	VerificationAttempts *prometheus.CounterVec
	VerificationLatency  prometheus.Histogram
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attesta_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SerialsAllocated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_serials_allocated_total",
			Help: "Total number of credential serials allocated, labeled by level",
		}, []string{"level"}),
		AllocatorRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_allocator_retries_total",
			Help: "Total number of sequence allocations retried after a lock timeout",
		}),
		AllocatorLockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_allocator_lock_wait_seconds",
			Help:    "Time spent holding the sequence counter row lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		AccessRequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_access_requests_created_total",
			Help: "Total number of access requests created, labeled by scope",
		}, []string{"scope"}),
		RequestsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_access_requests_decided_total",
			Help: "Total number of access requests decided, labeled by decision",
		}, []string{"decision"}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_grants_revoked_total",
			Help: "Total number of access grants revoked by holders",
		}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_request_rate_limit_rejections_total",
			Help: "Total number of access requests rejected by the daily cap",
		}),
		VerificationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_verification_attempts_total",
			Help: "Total number of verification attempts, labeled by outcome",
		}, []string{"outcome"}),
		VerificationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_verification_latency_seconds",
			Help:    "Latency of credential verification in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveEndpointLatency records latency for the given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}
