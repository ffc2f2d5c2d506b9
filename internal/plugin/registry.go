package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Builder constructs a fresh plugin instance.
type Builder func() Plugin

// Registry maps plugin names to builders. Plugins register explicitly;
// there is no directory scanning or dynamic code loading.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under name. Registering the same name twice
// is a programming error and returns one.
func (r *Registry) Register(name string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[name]; ok {
		return fmt.Errorf("plugin: %q already registered", name)
	}
	r.builders[name] = b
	return nil
}

// Names returns all registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named plugin.
func (r *Registry) Build(name string) (Plugin, error) {
	r.mu.RLock()
	b, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrPluginLoad, name)
	}
	return b(), nil
}
