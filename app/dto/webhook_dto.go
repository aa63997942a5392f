package dto

import "encoding/json"

// Webhook event names sent by the gateway
const (
	WebhookEventSMSReceived = "sms:received"
	WebhookEventSystemPing  = "system:ping"
)

// WebhookEnvelope is the outer body of every gateway callback
type WebhookEnvelope struct {
	ID        string          `json:"id,omitempty"`
	WebhookID string          `json:"webhookId,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
}

// IncomingSMSPayload is the payload of an sms:received event
type IncomingSMSPayload struct {
	MessageID   string `json:"messageId,omitempty"`
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
	SimNumber   *int   `json:"simNumber,omitempty"`
	ReceivedAt  string `json:"receivedAt,omitempty"`
}

// WebhookResponse is the JSON body returned to the gateway
type WebhookResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
