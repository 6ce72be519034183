// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("stt-test", 2, 30*time.Second, WithClock(clock.Now))
	fail := func() error { return errors.New("503") }

	assert.Error(t, cb.Execute(fail))
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, cb.Execute(fail))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "stt-test")
	assert.False(t, called)

	clock.t = clock.t.Add(31 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("probe-test", 1, time.Second, WithClock(clock.Now))

	_ = cb.Execute(func() error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerSingleProbe(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("single-probe", 1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(func() error { return errors.New("x") })
	clock.t = clock.t.Add(2 * time.Second)

	var inner error
	err := cb.Execute(func() error {
		assert.Equal(t, StateHalfOpen, cb.State())
		inner = cb.Execute(func() error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb := NewCircuitBreaker("permanent-test", 1, time.Minute)
	err := cb.Execute(func() error { return Permanent(errors.New("400")) })
	assert.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())
}
