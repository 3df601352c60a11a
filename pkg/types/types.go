// Package types defines the core interfaces and types for Probe Doctor.
package types

import "context"

// Monitor is the interface that all monitors must implement.
// Monitors watch a sensor log source for healthcheck probe events and
// report them via a channel.
type Monitor interface {
	// Start begins the monitoring process and returns a channel for events.
	// The monitor runs asynchronously and sends Event values through the
	// channel until Stop is called or a fatal I/O error occurs.
	Start() (<-chan *Event, error)

	// Stop gracefully stops the monitor.
	Stop()
}

// Event is the normalized healthcheck record extracted from one sensor
// log line. The five derived fields are filled in by the parser; Fields
// carries defaults supplied by the monitor's event template (for example
// the IP protocol when the sensor log does not record it).
type Event struct {
	// AlertTime is the alert timestamp in ISO-8601 form, UTC, second
	// precision (fractional seconds truncated).
	AlertTime string `json:"alert_time"`

	// SrcAddr and SrcPort identify the probe origin.
	SrcAddr string `json:"src_addr"`
	SrcPort int    `json:"src_port"`

	// DestAddr and DestPort identify the probed endpoint.
	DestAddr string `json:"dest_addr"`
	DestPort int    `json:"dest_port"`

	// Monitor is the name of the monitor instance that produced the event.
	Monitor string `json:"monitor,omitempty"`

	// Fields holds template-supplied defaults that are passed through
	// unchanged, keyed by their wire name (e.g. "protocol").
	Fields map[string]string `json:"fields,omitempty"`
}

// EventTemplate carries the default fields merged into every event a
// monitor produces. The template itself is immutable after construction;
// NewEvent returns a fresh Event per call so consecutive events never
// share a backing object.
type EventTemplate struct {
	monitor string
	fields  map[string]string
}

// NewEventTemplate builds a template for the named monitor. The defaults
// map is copied; later changes to the caller's map have no effect.
func NewEventTemplate(monitor string, defaults map[string]string) *EventTemplate {
	fields := make(map[string]string, len(defaults))
	for k, v := range defaults {
		fields[k] = v
	}
	return &EventTemplate{monitor: monitor, fields: fields}
}

// NewEvent returns a fresh Event pre-populated with the template's
// default fields. The returned event owns its Fields map.
func (t *EventTemplate) NewEvent() *Event {
	fields := make(map[string]string, len(t.fields))
	for k, v := range t.fields {
		fields[k] = v
	}
	return &Event{Monitor: t.monitor, Fields: fields}
}

// Field returns a default field value from the template, with a bool
// reporting whether the key is present.
func (t *EventTemplate) Field(key string) (string, bool) {
	v, ok := t.fields[key]
	return v, ok
}

// Exporter is the interface for components that publish events to
// external systems (HTTP webhooks, Prometheus, logs).
type Exporter interface {
	// ExportEvent publishes one event. Delivery is at-least-once; the
	// dispatcher does not retry on error but counts and logs failures.
	ExportEvent(ctx context.Context, event *Event) error
}
