package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed queue: LPUSH to enqueue, BRPOP to dequeue.
// Failed tasks are pushed to {key}:failed for inspection.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

// NewRedisQueue connects to addr and uses key as the task list.
func NewRedisQueue(addr, password string, db int, key string, pollTimeout time.Duration) *RedisQueue {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisQueueWithClient(rdb, key, pollTimeout)
}

// NewRedisQueueWithClient wraps an existing client.
func NewRedisQueueWithClient(client *redis.Client, key string, pollTimeout time.Duration) *RedisQueue {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisQueue{client: client, key: key, pollTimeout: pollTimeout}
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue implements Enqueuer.
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Dequeue implements Dequeuer.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("redis brpop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis brpop: unexpected reply of %d items", len(res))
	}

	raw := res[1]
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		q.client.LPush(ctx, q.failedKey(), raw) //nolint:errcheck
		return nil, fmt.Errorf("decode task: %w", err)
	}

	return &Delivery{
		Task: t,
		nack: func() error {
			return q.client.LPush(context.WithoutCancel(ctx), q.failedKey(), raw).Err()
		},
	}, nil
}

func (q *RedisQueue) failedKey() string { return q.key + ":failed" }

// Close closes the client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
