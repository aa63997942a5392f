package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliverTask(id string) *Task {
	return NewDeliverSMSTask(DeliverSMSPayload{AccountID: 1, MessageID: id, Recipients: []string{"+15551234567"}, Message: "hi"})
}

func TestMemoryQueue_ReserveRespectsDelay(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewMemoryQueue(func() time.Time { return base })

	require.NoError(t, q.Enqueue(ctx, deliverTask("later"), 2*time.Minute))
	require.NoError(t, q.Enqueue(ctx, deliverTask("now"), 0))
	require.NoError(t, q.Enqueue(ctx, deliverTask("soon"), time.Minute))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := q.Reserve(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "now", got[0].DeliverSMS.MessageID)

	got, err = q.Reserve(ctx, base.Add(3*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "soon", got[0].DeliverSMS.MessageID)
	assert.Equal(t, "later", got[1].DeliverSMS.MessageID)

	n, _ = q.Len(ctx)
	assert.Zero(t, n)
}

func TestMemoryQueue_ReserveLimitAndFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(nil)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, deliverTask(id), 0))
	}

	got, err := q.Reserve(ctx, time.Now().Add(time.Second), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].DeliverSMS.MessageID)
	assert.Equal(t, "b", got[1].DeliverSMS.MessageID)

	got, err = q.Reserve(ctx, time.Now().Add(time.Second), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryQueue_RejectsInvalidTask(t *testing.T) {
	q := NewMemoryQueue(nil)
	err := q.Enqueue(context.Background(), &Task{ID: "x", Kind: KindDeliverSMS, Attempt: 1}, 0)
	assert.ErrorIs(t, err, ErrPayloadMissing)
}

func TestMemoryQueue_ScheduledIsACopy(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewMemoryQueue(func() time.Time { return base })

	task := deliverTask("m")
	require.NoError(t, q.Enqueue(ctx, task, 90*time.Second))
	task.DeliverSMS.Message = "mutated"

	scheduled := q.Scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, base.Add(90*time.Second), scheduled[0].Due)
	assert.Equal(t, "hi", scheduled[0].Task.DeliverSMS.Message)
}
