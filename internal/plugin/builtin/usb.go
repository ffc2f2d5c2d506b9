package builtin

import (
	"context"
	"strings"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// USBWatcher annotates USB device connect, disconnect, and error
// events.
type USBWatcher struct {
	pctx plugin.Context
}

func NewUSBWatcher() *USBWatcher { return &USBWatcher{} }

func (u *USBWatcher) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "USB Watcher",
		Version:          "1.0",
		Author:           "ringbuffer",
		Description:      "Monitor and annotate USB device events",
		MinEngineVersion: "1.0",
		Capabilities: []plugin.Capability{
			plugin.CapabilityAnalyzeEvents,
			plugin.CapabilityAnnotateEvents,
		},
	}
}

func (u *USBWatcher) OnLoad(_ context.Context, pctx plugin.Context) error {
	u.pctx = pctx
	return nil
}

func (u *USBWatcher) OnEvent(_ context.Context, ev *model.Event) error {
	if !strings.Contains(strings.ToLower(ev.Subsystem), "usb") {
		return nil
	}
	msg := strings.ToLower(ev.Message)
	switch {
	case strings.Contains(msg, "new") && strings.Contains(msg, "device"):
		u.pctx.RegisterAnnotation(ev.ID, "USB device connected")
	case strings.Contains(msg, "disconnect") || strings.Contains(msg, "removed"):
		u.pctx.RegisterAnnotation(ev.ID, "USB device disconnected")
	case strings.Contains(msg, "error") || strings.Contains(msg, "failed"):
		u.pctx.RegisterAnnotation(ev.ID, "USB error detected")
	}
	return nil
}

func (u *USBWatcher) OnUnload(context.Context) error { return nil }
