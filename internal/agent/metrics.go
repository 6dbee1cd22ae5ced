package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// responderCalls counts persona responder calls.
	// Labels: backend, persona, status (ok, error, timeout, empty)
	responderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyst",
		Subsystem: "responder",
		Name:      "calls_total",
		Help:      "Total persona responder calls",
	}, []string{"backend", "persona", "status"})

	// responderLatency measures backend call latency in seconds.
	responderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyst",
		Subsystem: "responder",
		Name:      "latency_seconds",
		Help:      "Persona responder latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
	}, []string{"backend", "persona"})
)
