package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	deliver := NewDeliverSMSTask(DeliverSMSPayload{AccountID: 1, MessageID: "m", Recipients: []string{"+15551234567"}, Message: "hi"})
	incoming := NewProcessIncomingSMSTask(ProcessIncomingSMSPayload{DeviceID: "dev", Payload: json.RawMessage(`{}`)})

	tests := []struct {
		name    string
		task    *Task
		wantErr error
	}{
		{name: "deliver ok", task: deliver},
		{name: "incoming ok", task: incoming},
		{name: "nil", task: nil, wantErr: ErrTaskNil},
		{name: "unknown kind", task: &Task{ID: "x", Kind: "other", Attempt: 1}, wantErr: ErrUnknownKind},
		{name: "deliver without payload", task: &Task{ID: "x", Kind: KindDeliverSMS, Attempt: 1}, wantErr: ErrPayloadMissing},
		{
			name:    "both payloads",
			task:    &Task{ID: "x", Kind: KindProcessIncomingSMS, Attempt: 1, DeliverSMS: deliver.DeliverSMS, ProcessIncomingSMS: incoming.ProcessIncomingSMS},
			wantErr: ErrPayloadMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Error(t, (&Task{Kind: KindDeliverSMS, Attempt: 1, DeliverSMS: deliver.DeliverSMS}).Validate())
	assert.Error(t, (&Task{ID: "x", Kind: KindDeliverSMS, DeliverSMS: deliver.DeliverSMS}).Validate())
}

func TestTaskRetry(t *testing.T) {
	task := NewDeliverSMSTask(DeliverSMSPayload{AccountID: 1, MessageID: "m", Recipients: []string{"+15551234567"}, Message: "hi"})
	next := task.Retry()

	assert.Equal(t, task.ID, next.ID)
	assert.Equal(t, 1, task.Attempt)
	assert.Equal(t, 2, next.Attempt)
	assert.Equal(t, task.DeliverSMS, next.DeliverSMS)
}

func TestTaskEncodingRoundTrip(t *testing.T) {
	task := NewProcessIncomingSMSTask(ProcessIncomingSMSPayload{DeviceID: "dev-1", Payload: json.RawMessage(`{"phoneNumber":"+1555","message":"yo"}`)})
	data, err := encodeTask(task)
	require.NoError(t, err)

	decoded, err := decodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, KindProcessIncomingSMS, decoded.Kind)
	assert.Equal(t, "dev-1", decoded.ProcessIncomingSMS.DeviceID)
	assert.JSONEq(t, `{"phoneNumber":"+1555","message":"yo"}`, string(decoded.ProcessIncomingSMS.Payload))
	assert.Nil(t, decoded.DeliverSMS)

	_, err = encodeTask(&Task{ID: "x", Kind: KindDeliverSMS, Attempt: 1})
	assert.ErrorIs(t, err, ErrPayloadMissing)
}
