// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
)

// MemoryQueue is an in-process queue. It is not durable: jobs still buffered
// when the process exits are lost, and the watchdog resets their videos.
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Job
	closed bool
}

// NewMemoryQueue creates a queue holding up to buffer pending jobs.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryQueue{ch: make(chan Job, buffer)}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish blocks while the buffer is full, until ctx ends.
func (q *MemoryQueue) Publish(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.ch <- job:
		metrics.IncQueuePublished("memory", string(job.Kind))
		return nil
	case <-ctx.Done():
		reason := dropReason(ctx.Err())
		metrics.IncQueueDropped("memory", reason)
		log.L().Warn().
			Str(log.FieldJobID, job.String()).
			Str("reason", reason).
			Msg("memory queue full, job not published")
		return fmt.Errorf("publish %s: %w", job, ctx.Err())
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-q.ch:
			if !ok {
				return nil
			}
			dispatch(ctx, "memory", h, job)
		}
	}
}

// Close stops publishing and ends consumers once the buffer drains.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

// Len is the number of buffered jobs.
func (q *MemoryQueue) Len() int { return len(q.ch) }

var _ Queue = (*MemoryQueue)(nil)
