// Package metrics exposes pipeline counters for the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts events appended to the engine buffer.
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_events_ingested_total",
		Help: "Events appended to the ring buffer.",
	})

	// EventsMerged counts continuation lines folded into a prior event.
	EventsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_events_merged_total",
		Help: "Continuation lines merged into the previous event.",
	})

	// EventsEvicted counts oldest entries dropped on capacity overflow.
	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_events_evicted_total",
		Help: "Events evicted from the ring buffer by backpressure.",
	})

	// LinesDropped counts raw lines that failed to parse.
	LinesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_lines_dropped_total",
		Help: "Raw source lines dropped because no format matched.",
	})

	// SubscriberErrors counts panics recovered from subscriber callbacks.
	SubscriberErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_subscriber_errors_total",
		Help: "Subscriber callbacks that failed during fan-out.",
	})

	// PluginErrors counts contained plugin event-hook failures.
	PluginErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_plugin_errors_total",
		Help: "Plugin event hook failures (contained, per plugin call).",
	})

	// PluginWarnings counts warnings emitted through plugin contexts.
	PluginWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_plugin_warnings_total",
		Help: "Warnings emitted by plugins via their restricted context.",
	})

	// BufferSize tracks the current ring buffer occupancy.
	BufferSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ringbuffer_buffer_size",
		Help: "Current number of events held in the ring buffer.",
	})

	// ExportFailures counts failed OTLP export batches.
	ExportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringbuffer_export_failures_total",
		Help: "OTLP export batches that could not be delivered.",
	})
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
