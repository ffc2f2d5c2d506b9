package plugin

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
)

// Status describes a loaded plugin for API consumers.
type Status struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Author   string   `json:"author"`
	Enabled  bool     `json:"enabled"`
	Caps     []string `json:"capabilities"`
	Describe string   `json:"description"`
}

// Manager owns the plugin lifecycle. A failing plugin is isolated:
// its errors and panics are logged and counted, never propagated to
// the ingestion path or other plugins.
type Manager struct {
	registry      *Registry
	engineVersion string

	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
	enabled map[string]bool
	pctx    Context
}

func NewManager(registry *Registry, engineVersion string) *Manager {
	if engineVersion == "" {
		engineVersion = EngineVersion
	}
	return &Manager{
		registry:      registry,
		engineVersion: engineVersion,
		plugins:       make(map[string]Plugin),
		enabled:       make(map[string]bool),
	}
}

// SetContext installs the restricted context handed to plugins at
// load time. Must be called before Load.
func (m *Manager) SetContext(pctx Context) {
	m.mu.Lock()
	m.pctx = pctx
	m.mu.Unlock()
}

// Available lists registered plugin names without loading them.
func (m *Manager) Available() []string {
	return m.registry.Names()
}

// Load builds the named plugin, checks version compatibility, and
// runs its OnLoad hook. Loading an already-loaded plugin is a warning,
// not an error. Loaded plugins start enabled.
func (m *Manager) Load(ctx context.Context, name string) error {
	m.mu.Lock()
	if _, ok := m.plugins[name]; ok {
		m.mu.Unlock()
		log.Printf("plugin: %s already loaded", name)
		return nil
	}
	pctx := m.pctx
	m.mu.Unlock()

	p, err := m.registry.Build(name)
	if err != nil {
		return err
	}

	meta := p.Metadata()
	if !checkEngineVersion(meta.MinEngineVersion, m.engineVersion) {
		return fmt.Errorf("%w: %s requires engine v%s, have v%s",
			ErrPluginVersion, name, meta.MinEngineVersion, m.engineVersion)
	}

	if err := safeLoad(ctx, p, pctx); err != nil {
		metrics.PluginErrors.Inc()
		return fmt.Errorf("%w: %s: %v", ErrPluginLoad, name, err)
	}

	m.mu.Lock()
	m.plugins[name] = p
	m.order = append(m.order, name)
	m.enabled[name] = true
	m.mu.Unlock()

	log.Printf("plugin: %s v%s loaded", meta.Name, meta.Version)
	return nil
}

// Unload runs the plugin's OnUnload hook and forgets it. Unload
// errors are logged, the plugin is removed regardless.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	p, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotLoaded, name)
	}
	delete(m.plugins, name)
	delete(m.enabled, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := safeUnload(ctx, p); err != nil {
		metrics.PluginErrors.Inc()
		log.Printf("plugin: %s unload error: %v", name, err)
	}
	log.Printf("plugin: %s unloaded", name)
	return nil
}

// Enable resumes event delivery to a loaded plugin.
func (m *Manager) Enable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[name]; !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotLoaded, name)
	}
	m.enabled[name] = true
	return nil
}

// Disable suspends event delivery without unloading. Disabling an
// unknown plugin is a no-op.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	m.enabled[name] = false
	m.mu.Unlock()
}

// Enabled reports whether the named plugin currently receives events.
func (m *Manager) Enabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled[name]
}

// ProcessEvent feeds ev to every enabled plugin in load order. A
// cancelled context aborts delivery; any other plugin failure is
// contained and the remaining plugins still run.
func (m *Manager) ProcessEvent(ctx context.Context, ev *model.Event) {
	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	active := make(map[string]Plugin, len(names))
	for _, name := range names {
		if m.enabled[name] {
			active[name] = m.plugins[name]
		}
	}
	m.mu.RUnlock()

	for _, name := range names {
		p, ok := active[name]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := safeEvent(ctx, p, ev); err != nil {
			metrics.PluginErrors.Inc()
			log.Printf("plugin: %s event error: %v", name, err)
		}
	}
}

// Statuses reports all loaded plugins, sorted by name.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.plugins))
	for name, p := range m.plugins {
		meta := p.Metadata()
		caps := make([]string, len(meta.Capabilities))
		for i, c := range meta.Capabilities {
			caps[i] = string(c)
		}
		out = append(out, Status{
			Name:     name,
			Version:  meta.Version,
			Author:   meta.Author,
			Enabled:  m.enabled[name],
			Caps:     caps,
			Describe: meta.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown unloads every plugin in reverse load order.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	m.mu.RUnlock()

	for i := len(names) - 1; i >= 0; i-- {
		if err := m.Unload(ctx, names[i]); err != nil {
			log.Printf("plugin: shutdown: %v", err)
		}
	}
	log.Printf("plugin: all plugins shut down")
}

func safeLoad(ctx context.Context, p Plugin, pctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in OnLoad: %v", r)
		}
	}()
	return p.OnLoad(ctx, pctx)
}

func safeEvent(ctx context.Context, p Plugin, ev *model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in OnEvent: %v", r)
		}
	}()
	return p.OnEvent(ctx, ev)
}

func safeUnload(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in OnUnload: %v", r)
		}
	}()
	return p.OnUnload(ctx)
}
