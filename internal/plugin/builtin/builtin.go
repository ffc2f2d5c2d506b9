// Package builtin ships the plugins bundled with the engine.
package builtin

import "github.com/tinytelemetry/ringbuffer/internal/plugin"

// RegisterAll adds every bundled plugin to the registry.
func RegisterAll(r *plugin.Registry) error {
	builders := map[string]plugin.Builder{
		"usb-watcher":      func() plugin.Plugin { return NewUSBWatcher() },
		"oom-detector":     func() plugin.Plugin { return NewOOMDetector() },
		"security-monitor": func() plugin.Plugin { return NewSecurityMonitor() },
		"pattern-summary":  func() plugin.Plugin { return NewPatternSummary() },
	}
	for name, b := range builders {
		if err := r.Register(name, b); err != nil {
			return err
		}
	}
	return nil
}
