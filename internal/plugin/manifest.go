package plugin

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk plugin configuration, typically plugins.yml.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// ManifestEntry selects a registered plugin and its initial state.
type ManifestEntry struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// LoadManifest parses a plugin manifest file. A missing file yields an
// empty manifest, not an error.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("plugin: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugin: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Apply loads each manifest entry through mgr. Entries default to
// enabled; a failing entry is skipped and reported in the returned
// slice so one bad plugin cannot block the rest.
func (m *Manifest) Apply(ctx context.Context, mgr *Manager) []error {
	var errs []error
	for _, entry := range m.Plugins {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("plugin: manifest entry without a name"))
			continue
		}
		if err := mgr.Load(ctx, entry.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		if entry.Enabled != nil && !*entry.Enabled {
			mgr.Disable(entry.Name)
		}
	}
	return errs
}
