// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// dispatch runs one job, turning panics into logged failures so a broken run
// never takes the worker down.
func dispatch(ctx context.Context, backend string, h Handler, job Job) {
	ctx = log.ContextWithJobID(ctx, job.String())
	if job.CorrelationID != "" {
		ctx = log.ContextWithCorrelationID(ctx, job.CorrelationID)
	}
	logger := log.WithContext(ctx, log.WithComponent("worker"))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				logger.Error().Str("stack", string(debug.Stack())).Msg("job panicked")
			}
		}()
		return h(ctx, job)
	}()

	if err != nil {
		metrics.IncQueueConsumed(backend, string(job.Kind), "error")
		logger.Error().Err(err).Str(log.FieldEvent, "job.failed").Msg("job failed")
		return
	}
	metrics.IncQueueConsumed(backend, string(job.Kind), "ok")
}

// Pool runs Workers consumers on one queue.
type Pool struct {
	Queue   Queue
	Workers int
	Handler Handler
}

// Run blocks until ctx ends or the queue closes, and returns once every
// worker finished its current job.
func (p *Pool) Run(ctx context.Context) error {
	n := p.Workers
	if n <= 0 {
		n = 1
	}
	log.L().Info().Int("workers", n).Str(log.FieldEvent, "pool.start").Msg("worker pool started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return p.Queue.Consume(gctx, p.Handler)
		})
	}
	err := g.Wait()
	log.L().Info().Str(log.FieldEvent, "pool.stop").Msg("worker pool stopped")
	return err
}
