// Package metrics defines the Prometheus instrumentation for Probe
// Doctor. Counters are registered on the default registry and served by
// the prometheus exporter's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "probe_doctor"

var (
	// LinesAcquired counts raw lines read from the sensor log, before
	// signature filtering.
	LinesAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_acquired_total",
			Help:      "Raw log lines read from the sensor log file",
		},
		[]string{"monitor"},
	)

	// SignatureMatches counts lines that passed the signature pre-filter.
	SignatureMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_matches_total",
			Help:      "Log lines containing the configured signature",
		},
		[]string{"monitor"},
	)

	// ParseFailures counts signature-matched lines the parser rejected.
	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Signature-matched lines that failed structured parsing",
		},
		[]string{"monitor"},
	)

	// Truncations counts log file truncation/rotation detections.
	Truncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_truncations_total",
			Help:      "Times the sensor log was observed shorter than the read cursor",
		},
		[]string{"monitor"},
	)

	// EventsPublished counts events handed to the dispatcher.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Healthcheck events published by monitors",
		},
		[]string{"monitor"},
	)

	// ExportsTotal counts export operations by exporter and result.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Event export operations by exporter and result",
		},
		[]string{"exporter", "result"},
	)
)
