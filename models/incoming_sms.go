package models

import "time"

// IncomingSMS is an inbound message delivered by the gateway webhook. Rows are
// written once and never updated.
type IncomingSMS struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AccountID        *uint     `gorm:"index:idx_incoming_sms_account_id" json:"account_id,omitempty"`
	Sender           string    `gorm:"size:64;not null;index:idx_incoming_sms_sender" json:"sender"`
	Body             string    `gorm:"type:text;not null" json:"body"`
	ReceivedAt       time.Time `gorm:"not null;index:idx_incoming_sms_received_at" json:"received_at"`
	SimSlot          *int      `json:"sim_slot,omitempty"`
	GatewayMessageID *string   `gorm:"size:64;index:idx_incoming_sms_gateway_message_id" json:"gateway_message_id,omitempty"`
	DeviceID         *string   `gorm:"size:128" json:"device_id,omitempty"`
	RawPayload       string    `gorm:"type:text;not null" json:"raw_payload"`
	CreatedAt        time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
}

func (IncomingSMS) TableName() string { return "incoming_sms" }

// IncomingSMSFilter provides filter fields for repository queries
type IncomingSMSFilter struct {
	AccountID        *uint
	Sender           *string
	GatewayMessageID *string
	ReceivedAfter    *time.Time
	ReceivedBefore   *time.Time
}
