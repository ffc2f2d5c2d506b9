package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// SecurityMonitor tracks AppArmor and SELinux enforcement denials.
type SecurityMonitor struct {
	pctx    plugin.Context
	denials atomic.Int64
}

func NewSecurityMonitor() *SecurityMonitor { return &SecurityMonitor{} }

func (s *SecurityMonitor) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "Security Module Monitor",
		Version:          "1.0",
		Author:           "ringbuffer",
		Description:      "Monitor LSM (AppArmor, SELinux) enforcement events",
		MinEngineVersion: "1.0",
		Capabilities: []plugin.Capability{
			plugin.CapabilityAnalyzeEvents,
			plugin.CapabilityAnnotateEvents,
		},
	}
}

func (s *SecurityMonitor) OnLoad(_ context.Context, pctx plugin.Context) error {
	s.pctx = pctx
	s.denials.Store(0)
	return nil
}

func (s *SecurityMonitor) OnEvent(_ context.Context, ev *model.Event) error {
	msg := strings.ToLower(ev.Message)
	if !strings.Contains(msg, "denied") {
		return nil
	}
	switch {
	case strings.Contains(msg, "apparmor"):
		n := s.denials.Add(1)
		s.pctx.RegisterAnnotation(ev.ID, fmt.Sprintf("AppArmor denial #%d", n))
	case strings.Contains(msg, "selinux"):
		s.pctx.RegisterAnnotation(ev.ID, "SELinux denial")
	}
	return nil
}

func (s *SecurityMonitor) OnUnload(context.Context) error { return nil }
