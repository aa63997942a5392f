package dto

// SendSMSRequest queues (or directly sends) one message to one or more recipients
type SendSMSRequest struct {
	MessageID          *string  `json:"message_id,omitempty" validate:"omitempty,max=36"`
	Recipients         []string `json:"recipients" validate:"required,min=1,max=100,dive,required,min=5,max=32"`
	Message            string   `json:"message" validate:"required,min=1,max=10000"`
	SimNumber          *int     `json:"sim_number,omitempty" validate:"omitempty,min=1,max=3"`
	WithDeliveryReport *bool    `json:"with_delivery_report,omitempty"`
	// Priority >= 100 bypasses gateway throttling
	Priority *int `json:"priority,omitempty" validate:"omitempty,min=-128,max=127"`
}

// SendSMSResponse is returned once the delivery task is queued
type SendSMSResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// RecipientStateDTO is the gateway's per-recipient state
type RecipientStateDTO struct {
	PhoneNumber string `json:"phone_number"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
}

// SendDirectSMSResponse carries the gateway acknowledgement of a synchronous send
type SendDirectSMSResponse struct {
	Message          string              `json:"message"`
	MessageID        string              `json:"message_id"`
	GatewayMessageID string              `json:"gateway_message_id"`
	State            string              `json:"state"`
	Recipients       []RecipientStateDTO `json:"recipients,omitempty"`
}

// SMSStatusResponse wraps the gateway status object untouched
type SMSStatusResponse struct {
	Message   string         `json:"message"`
	MessageID string         `json:"message_id"`
	Status    map[string]any `json:"status"`
}
