// Package queue provides the strictly-FIFO pending-job queue decoupling
// submission from processing.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"transcription-service/internal/config"
	"transcription-service/internal/models"
)

const pendingKey = "transcribe:pending"

// RedisQueue is an unbounded single-consumer FIFO of queued work backed by a
// Redis list. Submissions RPUSH, the worker BLPOPs, so first submitted is
// first processed.
type RedisQueue struct {
	client      *redis.Client
	pollTimeout time.Duration
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisQueue{
		client:      client,
		pollTimeout: 2 * time.Second,
	}
}

// NewRedisQueueWithClient wraps an existing client, used by tests.
func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, pollTimeout: 2 * time.Second}
}

// Enqueue appends work to the tail of the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, work models.QueuedWork) error {
	payload, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("marshal queued work: %w", err)
	}
	if err := q.client.RPush(ctx, pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks until work is available or ctx is done. The blocking pop
// uses a short timeout so cancellation is observed promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (models.QueuedWork, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.QueuedWork{}, err
		}
		res, err := q.client.BLPop(ctx, q.pollTimeout, pendingKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return models.QueuedWork{}, fmt.Errorf("dequeue: %w", err)
		}
		// BLPop returns [key, value].
		var work models.QueuedWork
		if err := json.Unmarshal([]byte(res[1]), &work); err != nil {
			return models.QueuedWork{}, fmt.Errorf("unmarshal queued work: %w", err)
		}
		return work, nil
	}
}

// Depth returns the number of pending items.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, pendingKey).Result()
}

// Close releases the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
