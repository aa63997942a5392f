package queue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultVisibilityTimeout bounds how long a reserved task may stay unacknowledged
const DefaultVisibilityTimeout = 5 * time.Minute

// reserveScript first returns reservations whose deadline (score <= ARGV[1])
// has passed to the delayed set, then moves up to ARGV[2] due members into the
// reserved set scored by the deadline ARGV[3].
var reserveScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, m in ipairs(expired) do
	redis.call('ZREM', KEYS[2], m)
	redis.call('ZADD', KEYS[1], ARGV[1], m)
end
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(items) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('ZADD', KEYS[2], ARGV[3], m)
end
return items
`)

// RedisQueue stores tasks in a sorted set scored by their due time in unix
// milliseconds. Reserved tasks move to a second set scored by their
// visibility deadline and stay there until acknowledged; a reservation that
// outlives the deadline is handed out again, so delivery is at-least-once.
type RedisQueue struct {
	rc          *redis.Client
	key         string
	reservedKey string
	visibility  time.Duration
	logger      *log.Logger
}

// NewRedisQueue creates a queue under {prefix}tasks:delayed and {prefix}tasks:reserved
func NewRedisQueue(rc *redis.Client, prefix string, visibility time.Duration, logger *log.Logger) *RedisQueue {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisQueue{
		rc:          rc,
		key:         prefix + "tasks:delayed",
		reservedKey: prefix + "tasks:reserved",
		visibility:  visibility,
		logger:      logger,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task *Task, delay time.Duration) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}

	due := time.Now().Add(delay).UnixMilli()
	if err := q.rc.ZAdd(ctx, q.key, redis.Z{Score: float64(due), Member: data}).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return nil
}

func (q *RedisQueue) Reserve(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	args := []any{
		strconv.FormatInt(now.UnixMilli(), 10),
		limit,
		strconv.FormatInt(now.Add(q.visibility).UnixMilli(), 10),
	}
	members, err := reserveScript.Run(ctx, q.rc, []string{q.key, q.reservedKey}, args...).StringSlice()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("reserve tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(members))
	for _, m := range members {
		t, err := decodeTask([]byte(m))
		if err != nil {
			q.logger.Printf("WARNING dropping undecodable task from %s: %v", q.key, err)
			if rerr := q.rc.ZRem(ctx, q.reservedKey, m).Err(); rerr != nil {
				q.logger.Printf("WARNING failed to drop undecodable task from %s: %v", q.reservedKey, rerr)
			}
			continue
		}
		t.receipt = m
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Ack removes a reserved task for good. Tasks that were never reserved here
// are ignored.
func (q *RedisQueue) Ack(ctx context.Context, task *Task) error {
	if task == nil || task.receipt == "" {
		return nil
	}
	if err := q.rc.ZRem(ctx, q.reservedKey, task.receipt).Err(); err != nil {
		return fmt.Errorf("ack task %s: %w", task.ID, err)
	}
	return nil
}

// Len counts tasks waiting to be reserved; in-flight reservations are not included
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rc.ZCard(ctx, q.key).Result()
}

var _ Queue = (*RedisQueue)(nil)
