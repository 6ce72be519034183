// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list holding pending jobs.
const DefaultRedisKey = "vidlingo:jobs"

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisQueue is a durable FIFO on one Redis list (LPUSH / BRPOP).
type RedisQueue struct {
	client *redis.Client
	key    string
	// poll bounds one BRPOP so consumers notice shutdown.
	poll   time.Duration
	closed atomic.Bool
}

// NewRedisQueue connects and pings the server.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisQueue(client, cfg.Key), nil
}

func newRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key, poll: time.Second}
}

func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	if q.closed.Load() {
		return ErrClosed
	}
	buf, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode %s: %w", job, err)
	}
	if err := q.client.LPush(ctx, q.key, buf).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", job, err)
	}
	metrics.IncQueuePublished("redis", string(job.Kind))
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, h Handler) error {
	logger := log.WithComponent("queue")
	for {
		if ctx.Err() != nil || q.closed.Load() {
			return nil
		}
		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.ErrClosed):
			return nil
		case err != nil:
			logger.Warn().Err(err).Str(log.FieldEvent, "queue.redis_error").Msg("BRPOP failed, backing off")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.poll):
			}
			continue
		}

		// res is [key, value].
		var job Job
		if len(res) != 2 || json.Unmarshal([]byte(res[1]), &job) != nil {
			metrics.IncQueueDropped("redis", "decode")
			logger.Error().Str(log.FieldEvent, "queue.decode_failed").Msg("dropping undecodable job")
			continue
		}
		dispatch(ctx, "redis", h, job)
	}
}

// Close stops consumers after their current poll and closes the client.
func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}

// Len is the number of pending jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

var _ Queue = (*RedisQueue)(nil)
