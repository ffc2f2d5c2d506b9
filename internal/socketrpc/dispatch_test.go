package socketrpc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// stubController returns fixed values for dispatch unit testing.
type stubController struct{}

func (c *stubController) Status() StatusInfo {
	return StatusInfo{Source: "dmesg", Running: true, Buffered: 5}
}

func (c *stubController) RecentEvents(limit int, severities []string) ([]*model.Event, error) {
	return []*model.Event{{
		ID:       "ev-1",
		Realtime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Severity: model.SeverityInfo,
		Message:  "test",
		Source:   "dmesg",
	}}, nil
}

func (c *stubController) Pause()       {}
func (c *stubController) Resume()      {}
func (c *stubController) FlushBuffer() {}

func (c *stubController) Plugins() []plugin.Status {
	return []plugin.Status{{Name: "oom-detector", Enabled: true}}
}

func (c *stubController) EnablePlugin(name string) error {
	if name != "oom-detector" {
		return fmt.Errorf("plugin %q not loaded", name)
	}
	return nil
}

func (c *stubController) DisablePlugin(name string) error {
	if name != "oom-detector" {
		return fmt.Errorf("plugin %q not loaded", name)
	}
	return nil
}

func newTestDispatcher() *Server {
	return &Server{ctrl: &stubController{}}
}

func TestDispatch_AllMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	tests := []struct {
		method string
		params string
	}{
		{"Status", `{}`},
		{"RecentEvents", `{"Limit":100,"Severities":["ERR"]}`},
		{"Pause", `{}`},
		{"Resume", `{}`},
		{"FlushBuffer", `{}`},
		{"Plugins", `{}`},
		{"EnablePlugin", `{"Name":"oom-detector"}`},
		{"DisablePlugin", `{"Name":"oom-detector"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			req := Request{
				JSONRPC: "2.0",
				ID:      1,
				Method:  tt.method,
				Params:  json.RawMessage(tt.params),
			}
			resp := srv.dispatch(req)
			if resp.Error != nil {
				t.Fatalf("dispatch(%s) error: %s", tt.method, resp.Error.Message)
			}
			if resp.Result == nil {
				t.Fatalf("dispatch(%s) returned nil result", tt.method)
			}
			if resp.JSONRPC != "2.0" {
				t.Errorf("JSONRPC = %q, want 2.0", resp.JSONRPC)
			}
			if resp.ID != 1 {
				t.Errorf("ID = %d, want 1", resp.ID)
			}
		})
	}
}

func TestDispatch_MethodNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "NonExistentMethod",
		Params:  json.RawMessage(`{}`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("error code = %d, want -32601", resp.Error.Code)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "EnablePlugin",
		Params:  json.RawMessage(`not json`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for malformed params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("error code = %d, want -32602 (invalid params)", resp.Error.Code)
	}
}

func TestDispatch_EmptyParamsOnOptionalMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	// RecentEvents accepts empty/null params gracefully.
	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "RecentEvents",
		Params:  nil,
	})
	if resp.Error != nil {
		t.Fatalf("dispatch(RecentEvents) with nil params: %s", resp.Error.Message)
	}
}

func TestDispatch_ApplicationError(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "EnablePlugin",
		Params:  json.RawMessage(`{"Name":"missing"}`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown plugin")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("error code = %d, want -32000", resp.Error.Code)
	}
}

func TestDispatch_PreservesRequestID(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	for _, id := range []int{0, 1, 42, 9999} {
		resp := srv.dispatch(Request{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "Status",
			Params:  json.RawMessage(`{}`),
		})
		if resp.ID != id {
			t.Errorf("request ID %d: response ID = %d", id, resp.ID)
		}
	}
}
