// Package metrics provides Prometheus instrumentation for the scream service.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scream",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// CascadesTotal counts trigger cascade executions by result.
	CascadesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "cascades_total",
			Help:      "Total trigger cascade executions by result (executed, rejected, failed).",
		},
		[]string{"result"},
	)

	// RecoveryApprovalsTotal counts contact recovery approvals.
	RecoveryApprovalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "recovery_approvals_total",
			Help:      "Total contact approvals recorded.",
		},
	)

	// ClaimsTotal counts vault claims by result.
	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "claims_total",
			Help:      "Total vault claim attempts by result.",
		},
		[]string{"result"},
	)

	// GuardianAlertsTotal counts guardian alerts by severity.
	GuardianAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "guardian_alerts_total",
			Help:      "Total guardian threat alerts by severity (warning, critical).",
		},
		[]string{"severity"},
	)

	// GuardianRiskScore observes computed risk scores for negative deltas.
	GuardianRiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scream",
			Name:      "guardian_risk_score",
			Help:      "Risk scores computed for balance drops.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// WatchedWallets tracks the number of wallets under guardian observation.
	WatchedWallets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scream",
			Name:      "watched_wallets",
			Help:      "Number of wallets currently watched by the guardian.",
		},
	)

	// WebhookDeliveriesTotal counts webhook delivery attempts by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scream",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scream",
			Name:      "active_websocket_clients",
			Help:      "Number of connected WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CascadesTotal,
		RecoveryApprovalsTotal,
		ClaimsTotal,
		GuardianAlertsTotal,
		GuardianRiskScore,
		WatchedWallets,
		WebhookDeliveriesTotal,
		ActiveWebSocketClients,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latency per route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := statusLabel(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

func statusLabel(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
