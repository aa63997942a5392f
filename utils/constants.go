package utils

import (
	"time"
)

// Gateway call limits
const (
	// GatewaySendTimeout bounds POST {base}/messages
	GatewaySendTimeout = 15 * time.Second

	// GatewayStatusTimeout bounds GET {base}/messages/{id}
	GatewayStatusTimeout = 10 * time.Second

	// MaxMessageIDLength is the longest client supplied message id the gateway accepts
	MaxMessageIDLength = 36

	// MinPriority and MaxPriority are the signed byte bounds of the gateway priority field
	MinPriority = -128
	MaxPriority = 127

	// PriorityBypassThreshold marks priorities that skip gateway throttling
	PriorityBypassThreshold = 100
)

// Delivery retry policy defaults
const (
	// DefaultMaxDeliveryRetries is the number of re-enqueues after the first attempt
	DefaultMaxDeliveryRetries = 3

	// DefaultRetryBackoff is multiplied by the attempt number
	DefaultRetryBackoff = 60 * time.Second
)

// Webhook constants
const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"

	// DefaultWebhookTolerance is the accepted age of a webhook timestamp
	DefaultWebhookTolerance = 300 * time.Second

	// WebhookFutureSkew is how far in the future a webhook timestamp may be
	WebhookFutureSkew = 5 * time.Second

	// WebhookBodyLimit caps inbound webhook payloads (1MB)
	WebhookBodyLimit = 1 << 20
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
