// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/vidlingo/internal/metrics"
)

// State is the position of a breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the service while its breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards one external service. After threshold consecutive
// counted failures it opens for cooldown; then a single probe call decides
// whether it closes again.
type CircuitBreaker struct {
	service   string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	counts    func(error) bool

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	probing  bool
}

type Option func(*CircuitBreaker)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithFailureFilter decides which errors count against the breaker.
// By default permanent errors (rejected requests) do not.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = fn }
}

// NewCircuitBreaker returns a closed breaker for service.
func NewCircuitBreaker(service string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		service:   service,
		threshold: max(threshold, 1),
		cooldown:  cooldown,
		now:       time.Now,
		counts:    func(err error) bool { return !IsPermanent(err) },
		state:     StateClosed,
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(service, string(StateClosed))
	return cb
}

// Execute calls fn unless the breaker is open. While half-open only one
// caller probes; concurrent callers are rejected until the probe finishes.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, ok := cb.admit()
	if !ok {
		return fmt.Errorf("%s: %w", cb.service, ErrCircuitOpen)
	}
	err := fn()
	cb.settle(probe, err)
	return err
}

func (cb *CircuitBreaker) admit() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		cb.setState(StateHalfOpen)
	}
	switch cb.state {
	case StateClosed:
		return false, true
	case StateHalfOpen:
		if cb.probing {
			return false, false
		}
		cb.probing = true
		return true, true
	}
	return false, false
}

func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}

	counted := err != nil && cb.counts(err)
	switch {
	case !counted:
		// Uncounted errors prove the service answers.
		cb.streak = 0
		cb.setState(StateClosed)
	case cb.state == StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.service, "probe_failed")
		cb.trip()
	default:
		cb.streak++
		if cb.state == StateClosed && cb.streak >= cb.threshold {
			metrics.RecordCircuitBreakerTrip(cb.service, "threshold_exceeded")
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	metrics.SetCircuitBreakerState(cb.service, string(s))
}

// State reports the current position without advancing an expired cooldown.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
