package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/amirphl/sms-gateway-bridge/utils"
)

type scheduledTask struct {
	due  time.Time
	seq  uint64
	data []byte
}

type taskHeap []scheduledTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(scheduledTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MemoryQueue is a process-local Queue ordered by due time. Tasks are stored
// encoded so a reserved task never aliases the enqueued one.
type MemoryQueue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
	now   utils.Clock
}

// NewMemoryQueue creates an empty in-process queue
func NewMemoryQueue(now utils.Clock) *MemoryQueue {
	if now == nil {
		now = utils.UTCNow
	}
	return &MemoryQueue{now: now}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task *Task, delay time.Duration) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, scheduledTask{due: q.now().Add(delay), seq: q.seq, data: data})
	return nil
}

func (q *MemoryQueue) Reserve(_ context.Context, now time.Time, limit int) ([]*Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Task
	for q.items.Len() > 0 && len(out) < limit && !q.items[0].due.After(now) {
		item := heap.Pop(&q.items).(scheduledTask)
		t, err := decodeTask(item.data)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Ack is a no-op: reserved tasks have already left the heap and a process
// crash loses the whole queue anyway.
func (q *MemoryQueue) Ack(context.Context, *Task) error { return nil }

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(q.items.Len()), nil
}

// Scheduled lists pending tasks with their due times without removing them
func (q *MemoryQueue) Scheduled() []ScheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ScheduledTask, 0, len(q.items))
	for _, item := range q.items {
		t, err := decodeTask(item.data)
		if err != nil {
			continue
		}
		out = append(out, ScheduledTask{Task: t, Due: item.due})
	}
	return out
}

// ScheduledTask pairs a pending task with the time it becomes due
type ScheduledTask struct {
	Task *Task
	Due  time.Time
}

var _ Queue = (*MemoryQueue)(nil)
