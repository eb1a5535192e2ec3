package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a single Redis sorted set:
//
//	<prefix>tasks  => ZSET of gob-encoded Tasks scored by NotBefore (unix ms)
//
// Immediate tasks are scored with their enqueue time, so the set doubles as
// a FIFO for ready work and a timer wheel for deferred tickets. Dequeue
// atomically pops the earliest ready member with a Lua script and otherwise
// polls; there is no per-task delivery callback to cancel, which is exactly
// what self-invalidating timeout tickets need.
type RedisQueue struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
}

// NewRedisQueue constructs a Redis-backed Queue.
// prefix is optional but recommended (e.g. "creditbot:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client:       client,
		key:          prefix + "tasks",
		pollInterval: 250 * time.Millisecond,
	}
}

var _ Queue = (*RedisQueue)(nil)

// popReadyLua atomically removes and returns the member with the lowest
// score not exceeding ARGV[1], or false when nothing is ready.
var popReadyLua = redis.NewScript(`
local ready = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ready == 0 then
	return false
end
redis.call('ZREM', KEYS[1], ready[1])
return ready[1]
`)

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	if t.NotBefore.IsZero() {
		t.NotBefore = t.EnqueuedAt
	}

	data, err := EncodeTask(t)
	if err != nil {
		return fmt.Errorf("taskqueue encode: %w", err)
	}

	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(t.NotBefore.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("taskqueue enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		now := time.Now().UnixMilli()
		res, err := popReadyLua.Run(ctx, q.client, []string{q.key}, now).Result()
		if err == nil {
			raw, ok := res.(string)
			if !ok {
				return nil, fmt.Errorf("taskqueue dequeue: unexpected script result %T", res)
			}
			return DecodeTask([]byte(raw))
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("taskqueue dequeue: %w", err)
		}

		// Nothing ready: sleep a bit and retry.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *RedisQueue) Len() int {
	n, err := q.client.ZCard(context.Background(), q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
