// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue carries pipeline jobs from the trigger surface to workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects the pipeline a job runs.
type Kind string

const (
	KindMain Kind = "main"
	KindClip Kind = "clip"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("queue closed")

// Job is one scheduled pipeline run.
type Job struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
	// Token fences a main run: it is the run counter the trigger bumped, so a
	// worker never runs or finishes a run the watchdog already reset.
	Token         int64     `json:"token,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

func (j Job) String() string { return fmt.Sprintf("%s/%d", j.Kind, j.ID) }

// Handler processes one job. Returned errors are logged; the job is not
// redelivered since runs record their own outcome in the store.
type Handler func(ctx context.Context, job Job) error

// Queue is the scheduling backend.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Consume delivers jobs to h one at a time until ctx ends or the queue
	// is closed.
	Consume(ctx context.Context, h Handler) error
	Close() error
}
