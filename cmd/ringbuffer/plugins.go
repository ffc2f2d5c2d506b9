package main

import (
	"context"
	"log"
	"sync"

	"github.com/tinytelemetry/ringbuffer/internal/engine"
	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
	"github.com/tinytelemetry/ringbuffer/internal/plugin/builtin"
)

// engineContext is the restricted plugin context backed by the live
// engine.
type engineContext struct {
	eng *engine.Engine

	mu     sync.Mutex
	panels map[string]any
}

func newEngineContext(eng *engine.Engine) *engineContext {
	return &engineContext{eng: eng, panels: make(map[string]any)}
}

func (c *engineContext) RegisterAnnotation(eventID, text string) {
	if !c.eng.Annotate(eventID, text) {
		log.Printf("plugin: annotation for unknown event %s dropped", eventID)
	}
}

func (c *engineContext) EmitWarning(text string) {
	metrics.PluginWarnings.Inc()
	log.Printf("plugin warning: %s", text)
}

func (c *engineContext) AddPanel(name string, content any) {
	c.mu.Lock()
	c.panels[name] = content
	c.mu.Unlock()
}

func (c *engineContext) GetEventByID(eventID string) *model.Event {
	ev, ok := c.eng.EventByID(eventID)
	if !ok {
		return nil
	}
	return ev
}

// setupPlugins registers the bundled plugins and loads them per the
// manifest; with no manifest entries every bundled plugin loads
// enabled.
func setupPlugins(ctx context.Context, eng *engine.Engine, manifestPath string) (*plugin.Manager, error) {
	registry := plugin.NewRegistry()
	if err := builtin.RegisterAll(registry); err != nil {
		return nil, err
	}

	mgr := plugin.NewManager(registry, plugin.EngineVersion)
	mgr.SetContext(newEngineContext(eng))

	manifest, err := plugin.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	if len(manifest.Plugins) == 0 {
		for _, name := range registry.Names() {
			if err := mgr.Load(ctx, name); err != nil {
				log.Printf("plugin: skipping %s: %v", name, err)
			}
		}
		return mgr, nil
	}

	for _, err := range manifest.Apply(ctx, mgr) {
		log.Printf("plugin: %v", err)
	}
	return mgr, nil
}
