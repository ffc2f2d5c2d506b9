package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// OOMDetector flags out-of-memory killer invocations and memory
// pressure warnings, and keeps a running kill count.
type OOMDetector struct {
	pctx  plugin.Context
	kills atomic.Int64
}

func NewOOMDetector() *OOMDetector { return &OOMDetector{} }

func (o *OOMDetector) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "OOM Detector",
		Version:          "1.0",
		Author:           "ringbuffer",
		Description:      "Detect and analyze out-of-memory killer events",
		MinEngineVersion: "1.0",
		Capabilities: []plugin.Capability{
			plugin.CapabilityAnalyzeEvents,
			plugin.CapabilityEmitAlerts,
		},
	}
}

func (o *OOMDetector) OnLoad(_ context.Context, pctx plugin.Context) error {
	o.pctx = pctx
	o.kills.Store(0)
	return nil
}

func (o *OOMDetector) OnEvent(_ context.Context, ev *model.Event) error {
	msg := strings.ToLower(ev.Message)
	switch {
	case strings.Contains(msg, "oom killer") || strings.Contains(msg, "oom-kill"):
		n := o.kills.Add(1)
		o.pctx.RegisterAnnotation(ev.ID, fmt.Sprintf("OOM kill #%d", n))
		o.pctx.EmitWarning(fmt.Sprintf("out-of-memory killer triggered (#%d)", n))
	case strings.Contains(msg, "memory") &&
		(strings.Contains(msg, "pressure") || strings.Contains(msg, "low")):
		o.pctx.RegisterAnnotation(ev.ID, "memory pressure")
	}
	return nil
}

func (o *OOMDetector) OnUnload(context.Context) error { return nil }

// Kills reports how many OOM killer invocations were seen.
func (o *OOMDetector) Kills() int64 { return o.kills.Load() }
