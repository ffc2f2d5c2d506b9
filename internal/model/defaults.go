package model

// Shared defaults used by both the service and the CLI entrypoint.
const (
	DefaultBufferSize = 10000
	DefaultSnapshot   = 1000
)
