// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queuePublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_queue_published_total",
		Help: "Jobs published by backend and kind",
	}, []string{"backend", "kind"})

	queueConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_queue_consumed_total",
		Help: "Jobs consumed by backend, kind and handler result",
	}, []string{"backend", "kind", "result"})

	queueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_queue_dropped_total",
		Help: "Jobs dropped because the in-memory buffer was full or the job was malformed",
	}, []string{"backend", "reason"})
)

// IncQueuePublished counts a published job.
func IncQueuePublished(backend, kind string) {
	queuePublished.WithLabelValues(backend, kind).Inc()
}

// IncQueueConsumed counts a handled job.
func IncQueueConsumed(backend, kind, result string) {
	queueConsumed.WithLabelValues(backend, kind, result).Inc()
}

// IncQueueDropped counts a dropped job.
func IncQueueDropped(backend, reason string) {
	queueDropped.WithLabelValues(backend, reason).Inc()
}
