// Package telemetry provides application-level observability for the shared lists service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are served by
// the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<SLS_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router, so a client that can
// reach the API cannot read operational metrics unless the operator exposes that port.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template)
//   - Request gate decisions by visibility and reason
//   - API key issuance, invalidation and sweep counters
//   - Guarded mutation outcomes by operation
//   - Database connection pool gauge (polled every 30 s)
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics. The path label holds the Gin route template (e.g. /api/v1/lists/:id),
// never the raw URL, so list and item ids do not explode label cardinality.
//
// Example PromQL:
//   - Error rate (%): sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 per route:  histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// AuthGateDecisionsTotal counts every decision taken by the request gate.
// visibility is public, admin or user; reason is the rejection reason name, or "allowed".
//
// Example PromQL:
//   - Rejections by reason: sum by (reason) (rate(auth_gate_decisions_total{reason!="allowed"}[5m]))
//   - Admin brute force:    increase(auth_gate_decisions_total{visibility="admin",reason="wrong_key"}[10m]) > 20
var AuthGateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_gate_decisions_total",
		Help: "Total number of request gate decisions, by route visibility and reason.",
	},
	[]string{"visibility", "reason"},
)

// API key lifecycle counters. APIKeysSweptTotal is advanced by the number of rows
// removed in each DeleteExpired run, whether triggered over HTTP or by the CLI.
var (
	APIKeysIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_keys_issued_total",
			Help: "Total number of API keys issued (login and explicit issuance).",
		},
	)

	APIKeysInvalidatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_keys_invalidated_total",
			Help: "Total number of API keys invalidated (logout, logout-all, explicit revoke).",
		},
	)

	APIKeysSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_keys_swept_total",
			Help: "Total number of invalid or expired API keys deleted by the sweeper.",
		},
	)
)

// GuardedMutationsTotal counts authorize-then-mutate outcomes. outcome is one of
// success, denied, not_found, conflict, limit_reached, failed or error.
//
// Example PromQL:
//   - Denials by operation: sum by (operation) (rate(guarded_mutations_total{outcome="denied"}[1h]))
var GuardedMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "guarded_mutations_total",
		Help: "Total number of guarded mutations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// DBOpenConnections tracks open connections held by the sql.DB pool. It is sampled by
// StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until the database
// stops answering pings, which happens once main closes it on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
