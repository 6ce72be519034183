// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_proc_terminate_total",
		Help: "Signals sent to media tool process groups",
	}, []string{"signal", "result"})

	mediaCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_media_commands_total",
		Help: "Media tool invocations by operation and result (ok, error, timeout)",
	}, []string{"operation", "result"})
)

// IncProcTerminate counts a signal delivery attempt.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncMediaCommand counts a media tool invocation.
func IncMediaCommand(operation, result string) {
	mediaCommands.WithLabelValues(operation, result).Inc()
}
