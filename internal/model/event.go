package model

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// AnnotationContinuation marks events whose text extends the previous event
// (stack traces, hex dumps, register dumps). The engine consumes this flag
// when merging; it is stored as an annotation, not a dedicated field.
const AnnotationContinuation = "continuation"

// DefaultSubsystem is used when no subsystem could be extracted from a line.
const DefaultSubsystem = "KERNEL"

// Event is the normalized unit flowing through the whole pipeline.
// Created exclusively by the parser from one raw line, possibly mutated once
// per continuation merge by the engine, optionally annotated by plugins.
type Event struct {
	// ID is assigned at creation and never reassigned.
	ID string

	// Monotonic is seconds since boot when the source line carried a
	// bracketed timestamp; nil otherwise.
	Monotonic *float64

	// Realtime is derived once from Monotonic plus the process-wide boot
	// time, or defaulted to the parse instant.
	Realtime time.Time

	Severity  Severity
	Subsystem string
	Message   string

	// Raw is the untouched source line. After a continuation merge it holds
	// the prior raw lines joined by newline; that merge is the only
	// mutation Raw ever sees.
	Raw string

	// Source names the adapter that produced the event ("dmesg", "journal").
	Source string

	CPU *int
	PID *int

	// Annotations is written by the engine's continuation handling and by
	// plugins through their restricted context. The pipeline never clears it.
	Annotations map[string]any

	// PluginMetadata is reserved for plugin-authored structured output.
	PluginMetadata map[string]any
}

// NewEventID returns a fresh opaque event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// IsContinuation reports whether the parser flagged this event as a
// continuation of the previous one.
func (e *Event) IsContinuation() bool {
	if e.Annotations == nil {
		return false
	}
	flag, ok := e.Annotations[AnnotationContinuation].(bool)
	return ok && flag
}

// Annotate stores a value under key, allocating the annotation map on first
// use.
func (e *Event) Annotate(key string, value any) {
	if e.Annotations == nil {
		e.Annotations = make(map[string]any)
	}
	e.Annotations[key] = value
}

// Clone returns a copy sharing no pointer fields or maps with the
// receiver. The engine hands out clones across goroutine boundaries, so
// buffered events are only ever written under its lock. Map values are
// treated as immutable: writers store fresh values instead of mutating
// stored ones.
func (e *Event) Clone() *Event {
	c := *e
	if e.Monotonic != nil {
		v := *e.Monotonic
		c.Monotonic = &v
	}
	if e.CPU != nil {
		v := *e.CPU
		c.CPU = &v
	}
	if e.PID != nil {
		v := *e.PID
		c.PID = &v
	}
	c.Annotations = maps.Clone(e.Annotations)
	c.PluginMetadata = maps.Clone(e.PluginMetadata)
	return &c
}

// SetPluginMetadata stores plugin-authored output under key.
func (e *Event) SetPluginMetadata(key string, value any) {
	if e.PluginMetadata == nil {
		e.PluginMetadata = make(map[string]any)
	}
	e.PluginMetadata[key] = value
}
