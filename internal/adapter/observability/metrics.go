// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"route", "method"},
	)

	// AIRequestsTotal counts AI requests by provider and operation.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	// AIRequestDuration records durations of AI requests by provider and operation.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// JobsEnqueuedTotal counts jobs enqueued by stage.
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued, by stage",
		},
		[]string{"stage"},
	)
	// JobsProcessing is a gauge of the number of currently processing jobs by stage.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing, by stage",
		},
		[]string{"stage"},
	)
	// JobsCompletedTotal counts jobs completed by stage.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed, by stage",
		},
		[]string{"stage"},
	)
	// JobsFailedTotal counts jobs failed by stage.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed, by stage",
		},
		[]string{"stage"},
	)

	// ReplicaLoad is a gauge mirroring the load:<replica> counters for dashboards.
	ReplicaLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replica_load",
			Help: "Current in-flight job count per generator replica",
		},
		[]string{"replica"},
	)

	// QueryLatency records end-to-end ingress Query latency.
	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_latency_seconds",
			Help:    "End-to-end ingress query latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// PolicyEpsilon tracks the current RL policy exploration rate.
	PolicyEpsilon = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "policy_epsilon",
			Help: "Current epsilon of the RL replica-selection policy",
		},
	)
	// PolicyTrainSteps counts completed DQN training steps.
	PolicyTrainSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "policy_train_steps_total",
			Help: "Total number of completed DQN training steps",
		},
	)
	// PolicyTrainLoss records the MSE loss of each training step.
	PolicyTrainLoss = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policy_train_loss",
			Help:    "DQN training step MSE loss",
			Buckets: prometheus.DefBuckets,
		},
	)
	// PolicyRewards records rewards recorded by the policy.
	PolicyRewards = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policy_rewards",
			Help:    "Distribution of rewards recorded by the RL policy",
			Buckets: []float64{-10, -5, -1, -0.5, 0, 0.25, 0.5, 0.75, 1},
		},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(ReplicaLoad)
	prometheus.MustRegister(QueryLatency)
	prometheus.MustRegister(PolicyEpsilon)
	prometheus.MustRegister(PolicyTrainSteps)
	prometheus.MustRegister(PolicyTrainLoss)
	prometheus.MustRegister(PolicyRewards)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueJob increments the enqueued jobs counter for the given stage.
func EnqueueJob(stage string) {
	JobsEnqueuedTotal.WithLabelValues(stage).Inc()
}

// StartProcessingJob increments the processing gauge for the given stage.
func StartProcessingJob(stage string) {
	JobsProcessing.WithLabelValues(stage).Inc()
}

// CompleteJob marks a job complete by decrementing processing gauge and incrementing completed counter.
func CompleteJob(stage string) {
	JobsProcessing.WithLabelValues(stage).Dec()
	JobsCompletedTotal.WithLabelValues(stage).Inc()
}

// FailJob marks a job failed by decrementing processing gauge and incrementing failed counter.
func FailJob(stage string) {
	JobsProcessing.WithLabelValues(stage).Dec()
	JobsFailedTotal.WithLabelValues(stage).Inc()
}

// RecordQueryLatency records the latency of a completed ingress Query.
func RecordQueryLatency(outcome string, seconds float64) {
	QueryLatency.WithLabelValues(outcome).Observe(seconds)
}

// SetReplicaLoad mirrors a replica's current load counter into the gauge.
func SetReplicaLoad(replica string, value float64) {
	ReplicaLoad.WithLabelValues(replica).Set(value)
}

// RecordPolicyStep records the outcome of one DQN training step.
func RecordPolicyStep(epsilon, loss float64) {
	PolicyEpsilon.Set(epsilon)
	PolicyTrainSteps.Inc()
	PolicyTrainLoss.Observe(loss)
}

// RecordPolicyReward records a reward computed by Policy.Record.
func RecordPolicyReward(reward float64) {
	PolicyRewards.Observe(reward)
}
