// Package metrics exposes Prometheus instrumentation for the detection
// pipeline and HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraudwatch"

var (
	transactionsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_scored_total",
		Help:      "Transactions run through the scoring pipeline, by verdict.",
	}, []string{"verdict"})

	decisionBranches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decision_branches_total",
		Help:      "Decision router outcomes, by branch.",
	}, []string{"branch"})

	casesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cases_opened_total",
		Help:      "Fraud cases created by the detection flow or API.",
	})

	rulesTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_triggered_total",
		Help:      "Individual rule hits, by rule name.",
	}, []string{"rule"})

	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_failures_total",
		Help:      "Collaborator calls that degraded to their fallback signal.",
	}, []string{"collaborator"})

	collaboratorBreaker = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_breaker_transitions_total",
		Help:      "Collaborator circuit breaker state changes.",
	}, []string{"collaborator", "from_state", "to_state"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the API rate limiter.",
	})

	scoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "score_duration_seconds",
		Help:      "Wall time of a full pipeline scoring pass.",
		Buckets:   prometheus.DefBuckets,
	})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Currently connected alert stream clients.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// TransactionScored records a completed scoring pass.
func TransactionScored(verdict string, elapsed time.Duration) {
	transactionsScored.WithLabelValues(verdict).Inc()
	scoreLatency.Observe(elapsed.Seconds())
}

// DecisionBranch records the branch the router chose.
func DecisionBranch(branch string) {
	decisionBranches.WithLabelValues(branch).Inc()
}

// CaseOpened records a new fraud case.
func CaseOpened() {
	casesOpened.Inc()
}

// RuleTriggered records one rule hit.
func RuleTriggered(rule string) {
	rulesTriggered.WithLabelValues(rule).Inc()
}

// CollaboratorFailure records a collaborator call that fell back.
func CollaboratorFailure(name string) {
	collaboratorFailures.WithLabelValues(name).Inc()
}

// CollaboratorBreakerTransition records a circuit breaker state change.
func CollaboratorBreakerTransition(name, from, to string) {
	collaboratorBreaker.WithLabelValues(name, from, to).Inc()
}

// RateLimited records one request rejected by the rate limiter.
func RateLimited() {
	rateLimited.Inc()
}

// SetWebSocketClients records the current alert stream client count.
func SetWebSocketClients(n int) {
	wsClients.Set(float64(n))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware instruments every request with count and latency. Uses the
// route template, not the raw path, to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
