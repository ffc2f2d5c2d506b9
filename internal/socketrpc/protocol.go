package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the engine control surface over a
// Unix domain socket. Each method maps 1:1 to the Controller
// interface.
//
//   Method           Params                                    Result
//   ──────────────   ──────────────────────────────────────    ─────────────────
//   Status           (none)                                    StatusInfo
//   RecentEvents     {Limit: int, Severities: []string}        []WireEvent
//   Pause            (none)                                    "ok"
//   Resume           (none)                                    "ok"
//   FlushBuffer      (none)                                    "ok"
//   Plugins          (none)                                    []plugin.Status
//   EnablePlugin     {Name: string}                            "ok"
//   DisablePlugin    {Name: string}                            "ok"
//
// Methods with optional params (RecentEvents) accept empty or null
// params gracefully.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (control failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/ringbuffer/ringbuffer.sock, falling
// back to ~/.local/state/ringbuffer/ringbuffer.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "ringbuffer", "ringbuffer.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/ringbuffer.sock"
	}
	return filepath.Join(home, ".local", "state", "ringbuffer", "ringbuffer.sock")
}
