// Package telemetry holds the Prometheus collectors shared by the server and
// client processes.
package telemetry

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealscan_session_operations_total",
			Help: "Session store operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealscan_profile_cache_lookups_total",
			Help: "Profile cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	rpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mealscan_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	rpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mealscan_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)
)

// ObserveSessionOperation counts one session store operation.
func ObserveSessionOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sessionOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveCacheLookup counts one profile cache lookup.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// MetricsInterceptor records count and latency for every unary RPC.
func MetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			rpcRequestsTotal.WithLabelValues(procedure, code).Inc()
			rpcRequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())

			return resp, err
		}
	}
}
