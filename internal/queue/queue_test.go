// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis keeps a pool reaper per client until Close.
		goleak.IgnoreAnyFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"),
	)
}

func TestMemoryQueueDeliversInOrder(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Publish(ctx, Job{Kind: KindMain, ID: i}))
	}
	require.NoError(t, q.Close())

	var got []int64
	require.NoError(t, q.Consume(ctx, func(_ context.Context, j Job) error {
		got = append(got, j.ID)
		return nil
	}))
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.ErrorIs(t, q.Publish(ctx, Job{Kind: KindMain, ID: 9}), ErrClosed)
}

func TestMemoryQueuePublishRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Publish(context.Background(), Job{Kind: KindClip, ID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Job{Kind: KindClip, ID: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestPoolProcessesAndStops(t *testing.T) {
	q := NewMemoryQueue(16)
	var done atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)

	pool := &Pool{Queue: q, Workers: 3, Handler: func(_ context.Context, j Job) error {
		defer wg.Done()
		done.Add(1)
		if j.ID == 3 {
			panic("boom")
		}
		if j.ID%2 == 0 {
			return errors.New("failed run")
		}
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- pool.Run(ctx) }()

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, q.Publish(ctx, Job{Kind: KindMain, ID: i}))
	}
	wg.Wait()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
	assert.Equal(t, int32(10), done.Load())
}

func newMiniRedisQueue(t *testing.T) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	q := newRedisQueue(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:jobs")
	t.Cleanup(func() { _ = q.Close() })
	return mr, q
}

func TestRedisQueueFIFO(t *testing.T) {
	_, q := newMiniRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enq := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Publish(ctx, Job{Kind: KindMain, ID: i, Token: 100 + i, CorrelationID: "c", EnqueuedAt: enq}))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var got []Job
	err = q.Consume(ctx, func(_ context.Context, j Job) error {
		got = append(got, j)
		if len(got) == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(101), got[0].Token)
	assert.True(t, enq.Equal(got[2].EnqueuedAt))
}

func TestRedisQueueDropsGarbage(t *testing.T) {
	mr, q := newMiniRedisQueue(t)
	_, err := mr.Lpush("test:jobs", "{not json")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Publish(ctx, Job{Kind: KindClip, ID: 5}))

	var got []int64
	require.NoError(t, q.Consume(ctx, func(_ context.Context, j Job) error {
		got = append(got, j.ID)
		cancel()
		return nil
	}))
	assert.Equal(t, []int64{5}, got)
}

func TestRedisQueueClosed(t *testing.T) {
	_, q := newMiniRedisQueue(t)
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), Job{Kind: KindMain, ID: 1}), ErrClosed)
	assert.NoError(t, q.Consume(context.Background(), func(context.Context, Job) error { return nil }))
}
