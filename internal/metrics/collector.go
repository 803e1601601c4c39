// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// =============================================================================
// Collector
// =============================================================================

// Collector owns the Prometheus series for the routing pipeline. One
// Collector per process; all vectors register on the default registry so
// promhttp serves them without extra wiring.
type Collector struct {
	// Routing metrics
	routingDecisions  *prometheus.CounterVec
	routingConfidence *prometheus.HistogramVec
	analysisFallbacks prometheus.Counter

	// Execution metrics
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	responseChunks *prometheus.CounterVec
	interruptions  *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	adaptations    *prometheus.CounterVec

	// Provider metrics
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerTokens   *prometheus.CounterVec
	providerCost     *prometheus.CounterVec

	// Behavior store metrics
	storeOps        *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a Collector and registers its series under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// Routing metrics
	c.routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"pattern", "fallback"},
	)

	c.routingConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_confidence",
			Help:      "Confidence of routing decisions",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"pattern"},
	)

	c.analysisFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_fallbacks_total",
			Help:      "Total number of worker analyses scored by the keyword fallback",
		},
	)

	// Execution metrics
	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of completed plan steps",
		},
		[]string{"worker"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Plan step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	c.responseChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_chunks_total",
			Help:      "Total number of streamed response chunks",
		},
		[]string{"worker"},
	)

	c.interruptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of user interruptions",
		},
		[]string{"type"},
	)

	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs",
		},
		[]string{"pattern", "status"},
	)

	c.adaptations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_adaptations_total",
			Help:      "Total number of feedback-driven plan adaptations",
		},
		[]string{"kind", "applied"},
	)

	// Provider metrics
	c.providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.providerTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.providerCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_total",
			Help:      "Total provider cost in USD",
		},
		[]string{"provider", "model"},
	)

	// Behavior store metrics
	c.storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Total number of behavior store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_duration_seconds",
			Help:      "Behavior store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// HTTP metrics
	c.httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// Routing
// =============================================================================

// RecordRoutingDecision records one routing decision.
func (c *Collector) RecordRoutingDecision(pattern string, fallback bool, confidence float64) {
	c.routingDecisions.WithLabelValues(pattern, strconv.FormatBool(fallback)).Inc()
	c.routingConfidence.WithLabelValues(pattern).Observe(confidence)
}

// RecordAnalysisFallbacks counts worker analyses that came from the keyword
// fallback instead of the text-generation service.
func (c *Collector) RecordAnalysisFallbacks(count int) {
	if count > 0 {
		c.analysisFallbacks.Add(float64(count))
	}
}

// =============================================================================
// Execution
// =============================================================================

// RecordStep records a completed plan step. Duration is only observed when
// the step's start was seen, so a zero duration is skipped.
func (c *Collector) RecordStep(worker string, duration time.Duration) {
	c.stepsTotal.WithLabelValues(worker).Inc()
	if duration > 0 {
		c.stepDuration.WithLabelValues(worker).Observe(duration.Seconds())
	}
}

// RecordChunk counts one streamed response chunk.
func (c *Collector) RecordChunk(worker string) {
	c.responseChunks.WithLabelValues(worker).Inc()
}

// RecordInterruption counts one user interruption by classified type.
func (c *Collector) RecordInterruption(kind string) {
	c.interruptions.WithLabelValues(kind).Inc()
}

// RecordRun counts one finished run.
func (c *Collector) RecordRun(pattern, status string) {
	c.runsTotal.WithLabelValues(pattern, status).Inc()
}

// RecordAdaptation counts one feedback-driven adaptation proposal.
func (c *Collector) RecordAdaptation(kind string, applied bool) {
	c.adaptations.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// =============================================================================
// Provider
// =============================================================================

// RecordProviderRequest records one completion request against a provider.
func (c *Collector) RecordProviderRequest(provider, model, status string, duration time.Duration, usage types.TokenUsage) {
	c.providerRequests.WithLabelValues(provider, model, status).Inc()
	c.providerDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if usage.PromptTokens > 0 {
		c.providerTokens.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		c.providerTokens.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	}
	if usage.Cost > 0 {
		c.providerCost.WithLabelValues(provider, model).Add(usage.Cost)
	}
}

// =============================================================================
// Behavior store
// =============================================================================

// RecordStoreOp records one behavior store operation.
func (c *Collector) RecordStoreOp(backend, operation, status string, duration time.Duration) {
	c.storeOps.WithLabelValues(backend, operation, status).Inc()
	c.storeOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// =============================================================================
// HTTP
// =============================================================================

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// Helpers
// =============================================================================

// statusCode groups an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
