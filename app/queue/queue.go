package queue

import (
	"context"
	"time"
)

// Queue is a delayed task queue. Reserve hands each due task to one worker;
// the worker calls Ack once the task has been handled. Implementations may
// hand out a task again if it is never acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, task *Task, delay time.Duration) error
	Reserve(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	Ack(ctx context.Context, task *Task) error
	Len(ctx context.Context) (int64, error)
}
