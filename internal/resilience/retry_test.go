// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSleeps(out *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*out = append(*out, d)
		return nil
	}
}

func TestBackoffDoubles(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 2 * time.Minute}
	assert.Equal(t, 2*time.Minute, p.Backoff(1))
	assert.Equal(t, 4*time.Minute, p.Backoff(2))
	assert.Equal(t, 8*time.Minute, p.Backoff(3))
	assert.Equal(t, time.Duration(0), p.Backoff(0))

	p.MaxDelay = 5 * time.Minute
	assert.Equal(t, 5*time.Minute, p.Backoff(3))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var sleeps []time.Duration
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second}.WithSleeper(recordSleeps(&sleeps))

	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("503")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestDoExhausted(t *testing.T) {
	var sleeps []time.Duration
	retried := 0
	p := Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Second,
		OnRetry:     func(int, error, time.Duration) { retried++ },
	}.WithSleeper(recordSleeps(&sleeps))

	boom := errors.New("boom")
	err := p.Do(context.Background(), func(context.Context, int) error { return boom })

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, retried)
	assert.Len(t, sleeps, 1)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(errors.New("400 bad request"))
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDoAttemptTimeoutCountsAsFailure(t *testing.T) {
	var sleeps []time.Duration
	p := Policy{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond}.WithSleeper(recordSleeps(&sleeps))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, _ int) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDoHonoursParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
