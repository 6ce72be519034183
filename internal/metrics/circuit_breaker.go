// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidlingo_circuit_breaker_state",
		Help: "One-hot breaker position per external service",
	}, []string{"service", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_circuit_breaker_trips_total",
		Help: "Breaker transitions to open per external service",
	}, []string{"service", "reason"})
)

// SetCircuitBreakerState marks state as the only active position of service.
func SetCircuitBreakerState(service, state string) {
	for _, s := range [...]string{"closed", "half-open", "open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(service, s).Set(v)
	}
}

func RecordCircuitBreakerTrip(service, reason string) {
	breakerTrips.WithLabelValues(service, reason).Inc()
}
