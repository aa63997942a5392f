package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway calls partitioned by operation and outcome kind ("success" on 2xx)
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_gateway_requests_total",
			Help: "Total number of calls made to the SMS gateway",
		},
		[]string{"operation", "outcome"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sms_gateway_request_duration_seconds",
			Help:    "SMS gateway call latencies in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"operation"},
	)
)

func observeGatewayCall(op GatewayOperation, kind GatewayErrorKind, seconds float64) {
	outcome := string(kind)
	if kind == GatewayKindNone {
		outcome = "success"
	}
	gatewayRequestsTotal.WithLabelValues(string(op), outcome).Inc()
	gatewayRequestDuration.WithLabelValues(string(op)).Observe(seconds)
}
