package model

import "time"

// WireEvent is the flat cross-boundary form of an Event. The realtime
// timestamp is rendered as an RFC 3339 string, or left absent when zero.
type WireEvent struct {
	EventID            string         `json:"event_id"`
	TimestampMonotonic *float64       `json:"timestamp_monotonic,omitempty"`
	TimestampRealtime  string         `json:"timestamp_realtime,omitempty"`
	Severity           string         `json:"severity"`
	Subsystem          string         `json:"subsystem"`
	Message            string         `json:"message"`
	Raw                string         `json:"raw"`
	Source             string         `json:"source"`
	CPU                *int           `json:"cpu,omitempty"`
	PID                *int           `json:"pid,omitempty"`
	Annotations        map[string]any `json:"annotations,omitempty"`
	PluginMetadata     map[string]any `json:"plugin_metadata,omitempty"`
}

// Wire converts the event to its cross-boundary form.
func (e *Event) Wire() WireEvent {
	w := WireEvent{
		EventID:        e.ID,
		Severity:       string(e.Severity),
		Subsystem:      e.Subsystem,
		Message:        e.Message,
		Raw:            e.Raw,
		Source:         e.Source,
		Annotations:    e.Annotations,
		PluginMetadata: e.PluginMetadata,
	}
	if e.Monotonic != nil {
		mono := *e.Monotonic
		w.TimestampMonotonic = &mono
	}
	if !e.Realtime.IsZero() {
		w.TimestampRealtime = e.Realtime.Format(time.RFC3339Nano)
	}
	if e.CPU != nil {
		cpu := *e.CPU
		w.CPU = &cpu
	}
	if e.PID != nil {
		pid := *e.PID
		w.PID = &pid
	}
	return w
}

// FromWire rehydrates an Event from its cross-boundary form. Scalar fields
// round-trip exactly; an invalid severity normalizes rather than erroring so
// foreign payloads cannot inject out-of-range levels.
func FromWire(w WireEvent) (*Event, error) {
	e := &Event{
		ID:             w.EventID,
		Severity:       Severity(w.Severity),
		Subsystem:      w.Subsystem,
		Message:        w.Message,
		Raw:            w.Raw,
		Source:         w.Source,
		Annotations:    w.Annotations,
		PluginMetadata: w.PluginMetadata,
	}
	if !e.Severity.Valid() {
		e.Severity = NormalizeSeverity(w.Severity)
	}
	if w.TimestampMonotonic != nil {
		mono := *w.TimestampMonotonic
		e.Monotonic = &mono
	}
	if w.TimestampRealtime != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.TimestampRealtime)
		if err != nil {
			return nil, err
		}
		e.Realtime = ts
	}
	if w.CPU != nil {
		cpu := *w.CPU
		e.CPU = &cpu
	}
	if w.PID != nil {
		pid := *w.PID
		e.PID = &pid
	}
	return e, nil
}

// WireEvents converts a slice of events for cross-boundary consumption.
func WireEvents(events []*Event) []WireEvent {
	out := make([]WireEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e.Wire())
	}
	return out
}
