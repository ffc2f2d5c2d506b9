// Package plugin hosts the fault-isolated extension system. Plugins
// observe kernel events through a restricted context and must never
// block the event stream.
package plugin

import (
	"context"
	"errors"

	"github.com/tinytelemetry/ringbuffer/internal/model"
)

// Capability declares what a plugin is allowed to do.
type Capability string

const (
	CapabilityAnalyzeEvents  Capability = "analyze_events"
	CapabilityProvideUIPanel Capability = "provide_ui_panel"
	CapabilityEmitAlerts     Capability = "emit_alerts"
	CapabilityAnnotateEvents Capability = "annotate_events"
)

// Metadata identifies a plugin for discovery and version checking.
type Metadata struct {
	Name             string
	Version          string
	Author           string
	Description      string
	MinEngineVersion string
	Capabilities     []Capability
}

// HasCapability reports whether the metadata declares cap.
func (m Metadata) HasCapability(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Context is the restricted surface plugins get to talk back to the
// core. Implementations must be safe for concurrent use.
type Context interface {
	// RegisterAnnotation attaches a note to a buffered event.
	RegisterAnnotation(eventID, text string)
	// EmitWarning surfaces a non-disruptive warning to operators.
	EmitWarning(text string)
	// AddPanel registers a named display panel with arbitrary content.
	AddPanel(name string, content any)
	// GetEventByID retrieves a buffered event, or nil if evicted.
	GetEventByID(eventID string) *model.Event
}

// Plugin is the contract every extension implements. OnEvent must not
// block; errors and panics are contained by the manager and never
// reach the ingestion path.
type Plugin interface {
	Metadata() Metadata
	OnLoad(ctx context.Context, pc Context) error
	OnEvent(ctx context.Context, ev *model.Event) error
	OnUnload(ctx context.Context) error
}

var (
	ErrPluginLoad      = errors.New("plugin: load failed")
	ErrPluginVersion   = errors.New("plugin: incompatible engine version")
	ErrPluginNotLoaded = errors.New("plugin: not loaded")
)
