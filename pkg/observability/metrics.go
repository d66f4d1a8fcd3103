// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the umleitung gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and path.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umleitung_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "path"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "umleitung_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "umleitung_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts requests sent to the upstream backend.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umleitung_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"model", "status"},
	)

	// UpstreamLatency records upstream exchange latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "umleitung_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// UpstreamTokensTotal counts tokens reported by the upstream by
	// direction (prompt/completion/cached).
	UpstreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umleitung_upstream_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umleitung_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		UpstreamTokensTotal,
		RateLimitRejectedTotal,
	)
}

// ObserveExchange records the outcome of one upstream exchange.
func ObserveExchange(model, status string, seconds float64) {
	UpstreamRequestsTotal.WithLabelValues(model, status).Inc()
	UpstreamLatency.WithLabelValues(model).Observe(seconds)
}

// ObserveTokens records the token counts of one exchange.
func ObserveTokens(model string, prompt, completion, cached int) {
	if prompt > 0 {
		UpstreamTokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		UpstreamTokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
	if cached > 0 {
		UpstreamTokensTotal.WithLabelValues(model, "cached").Add(float64(cached))
	}
}
