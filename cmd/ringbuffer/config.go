package main

import (
	"github.com/tinytelemetry/ringbuffer/internal/model"
)

const (
	defaultBufferSize    = model.DefaultBufferSize
	defaultSnapshotLimit = model.DefaultSnapshot
	defaultBindHost      = "127.0.0.1"
	defaultAPIPort       = 3000
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	BufferSize     int    `mapstructure:"buffer-size"`
	SnapshotLimit  int    `mapstructure:"snapshot-limit"`
	Source         string `mapstructure:"source"`
	APIEnabled     bool   `mapstructure:"api-enabled"`
	APIPort        int    `mapstructure:"api-port"`
	APIAddr        string `mapstructure:"api-addr"`
	SocketPath     string `mapstructure:"socket-path"`
	PluginManifest string `mapstructure:"plugin-manifest"`
	ExportEnabled  bool   `mapstructure:"export-enabled"`
	ExportEndpoint string `mapstructure:"export-endpoint"`
	ConfigPath     string `mapstructure:"-"` // not from config file
}
