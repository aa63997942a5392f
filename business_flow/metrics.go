package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_jobs_total",
			Help: "Delivery job attempts by resulting state",
		},
		[]string{"state"},
	)

	smsQueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_queued_total",
			Help: "Messages accepted and queued for delivery",
		},
	)

	webhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Gateway webhook callbacks by event and response code",
		},
		[]string{"event", "code"},
	)

	incomingSMSTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incoming_sms_processed_total",
			Help: "Inbound messages processed by outcome",
		},
		[]string{"outcome"},
	)
)
