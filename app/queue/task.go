// Package queue holds the background task envelope and the delayed queues that carry it
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/google/uuid"
)

// Kind selects which handler runs a task
type Kind string

const (
	KindDeliverSMS         Kind = "deliver_sms"
	KindProcessIncomingSMS Kind = "process_incoming_sms"
)

var (
	ErrTaskNil        = errors.New("task is nil")
	ErrUnknownKind    = errors.New("unknown task kind")
	ErrPayloadMissing = errors.New("task payload does not match its kind")
)

// DeliverSMSPayload is everything a delivery attempt needs. The password is
// never carried; credentials are resolved when the task runs.
type DeliverSMSPayload struct {
	AccountID          uint     `json:"account_id"`
	MessageID          string   `json:"message_id"`
	Recipients         []string `json:"recipients"`
	Message            string   `json:"message"`
	SimNumber          *int     `json:"sim_number,omitempty"`
	WithDeliveryReport *bool    `json:"with_delivery_report,omitempty"`
	Priority           *int     `json:"priority,omitempty"`
}

// ProcessIncomingSMSPayload is the verified webhook payload plus the sending device
type ProcessIncomingSMSPayload struct {
	DeviceID string          `json:"device_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Task is the envelope stored in the queue. Exactly one payload is set and it
// must match Kind.
type Task struct {
	ID                 string                     `json:"id"`
	Kind               Kind                       `json:"kind"`
	Attempt            int                        `json:"attempt"`
	EnqueuedAt         time.Time                  `json:"enqueued_at"`
	DeliverSMS         *DeliverSMSPayload         `json:"deliver_sms,omitempty"`
	ProcessIncomingSMS *ProcessIncomingSMSPayload `json:"process_incoming_sms,omitempty"`

	// receipt is the stored form the task was reserved as, used by Ack
	receipt string
}

// NewDeliverSMSTask builds a first-attempt delivery task
func NewDeliverSMSTask(p DeliverSMSPayload) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Kind:       KindDeliverSMS,
		Attempt:    1,
		EnqueuedAt: utils.UTCNow(),
		DeliverSMS: &p,
	}
}

// NewProcessIncomingSMSTask builds a task for a verified inbound message
func NewProcessIncomingSMSTask(p ProcessIncomingSMSPayload) *Task {
	return &Task{
		ID:                 uuid.NewString(),
		Kind:               KindProcessIncomingSMS,
		Attempt:            1,
		EnqueuedAt:         utils.UTCNow(),
		ProcessIncomingSMS: &p,
	}
}

// Retry returns a copy of the task for the next attempt
func (t *Task) Retry() *Task {
	next := *t
	next.receipt = ""
	next.Attempt = t.Attempt + 1
	next.EnqueuedAt = utils.UTCNow()
	return &next
}

// Validate checks the envelope invariants
func (t *Task) Validate() error {
	if t == nil {
		return ErrTaskNil
	}
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Attempt < 1 {
		return fmt.Errorf("task attempt must be positive, got %d", t.Attempt)
	}

	switch t.Kind {
	case KindDeliverSMS:
		if t.DeliverSMS == nil || t.ProcessIncomingSMS != nil {
			return fmt.Errorf("%w: %s", ErrPayloadMissing, t.Kind)
		}
	case KindProcessIncomingSMS:
		if t.ProcessIncomingSMS == nil || t.DeliverSMS != nil {
			return fmt.Errorf("%w: %s", ErrPayloadMissing, t.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
	return nil
}

func encodeTask(t *Task) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

func decodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}
