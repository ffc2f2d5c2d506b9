package main

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/ringbuffer/internal/engine"
	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
	"github.com/tinytelemetry/ringbuffer/internal/socketrpc"
)

// controller adapts the engine and plugin manager to the socket RPC
// control surface.
type controller struct {
	eng          *engine.Engine
	mgr          *plugin.Manager
	defaultLimit int
}

func newController(eng *engine.Engine, mgr *plugin.Manager, defaultLimit int) *controller {
	if defaultLimit <= 0 {
		defaultLimit = defaultSnapshotLimit
	}
	return &controller{eng: eng, mgr: mgr, defaultLimit: defaultLimit}
}

func (c *controller) Status() socketrpc.StatusInfo {
	return socketrpc.StatusInfo{
		Source:   c.eng.SourceName(),
		Running:  c.eng.Running(),
		Paused:   c.eng.Paused(),
		Buffered: len(c.eng.Buffer()),
	}
}

// RecentEvents returns the newest events, optionally restricted to a
// severity set, oldest first.
func (c *controller) RecentEvents(limit int, severities []string) ([]*model.Event, error) {
	if limit <= 0 {
		limit = c.defaultLimit
	}

	var filter map[model.Severity]bool
	if len(severities) > 0 {
		filter = make(map[model.Severity]bool, len(severities))
		for _, raw := range severities {
			sev := model.Severity(strings.ToUpper(strings.TrimSpace(raw)))
			if !sev.Valid() {
				return nil, fmt.Errorf("unknown severity %q", raw)
			}
			filter[sev] = true
		}
	}

	buffer := c.eng.Buffer()
	filtered := buffer
	if filter != nil {
		filtered = make([]*model.Event, 0, len(buffer))
		for _, ev := range buffer {
			if filter[ev.Severity] {
				filtered = append(filtered, ev)
			}
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func (c *controller) Pause()       { c.eng.Pause() }
func (c *controller) Resume()      { c.eng.Resume() }
func (c *controller) FlushBuffer() { c.eng.FlushBuffer() }

func (c *controller) Plugins() []plugin.Status {
	return c.mgr.Statuses()
}

func (c *controller) EnablePlugin(name string) error {
	return c.mgr.Enable(name)
}

func (c *controller) DisablePlugin(name string) error {
	if !c.mgr.Enabled(name) {
		// Disabling twice is fine, disabling a stranger is not.
		found := false
		for _, st := range c.mgr.Statuses() {
			if st.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("plugin %q not loaded", name)
		}
	}
	c.mgr.Disable(name)
	return nil
}
