package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWireRoundTrip(t *testing.T) {
	t.Parallel()

	mono := 102484.883686
	cpu := 3
	pid := 2481341
	ev := &Event{
		ID:        NewEventID(),
		Monotonic: &mono,
		Realtime:  time.Date(2026, 2, 1, 12, 30, 45, 123456789, time.UTC),
		Severity:  SeverityErr,
		Subsystem: "zsh",
		Message:   "segfault at 10",
		Raw:       "[102484.883686] zsh[2481341]: segfault at 10",
		Source:    "dmesg",
		CPU:       &cpu,
		PID:       &pid,
		Annotations: map[string]any{
			"note": "flagged",
		},
	}

	data, err := json.Marshal(ev.Wire())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var w WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, err := FromWire(w)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}

	if got.ID != ev.ID {
		t.Errorf("event_id = %q, want %q", got.ID, ev.ID)
	}
	if got.Monotonic == nil || *got.Monotonic != mono {
		t.Errorf("monotonic = %v, want %v", got.Monotonic, mono)
	}
	if !got.Realtime.Equal(ev.Realtime) {
		t.Errorf("realtime = %v, want %v", got.Realtime, ev.Realtime)
	}
	if got.Severity != ev.Severity {
		t.Errorf("severity = %s, want %s", got.Severity, ev.Severity)
	}
	if got.Subsystem != ev.Subsystem || got.Message != ev.Message || got.Raw != ev.Raw || got.Source != ev.Source {
		t.Errorf("scalar fields differ: %+v", got)
	}
	if got.CPU == nil || *got.CPU != cpu {
		t.Errorf("cpu = %v, want %d", got.CPU, cpu)
	}
	if got.PID == nil || *got.PID != pid {
		t.Errorf("pid = %v, want %d", got.PID, pid)
	}
}

func TestWireOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	ev := &Event{
		ID:       NewEventID(),
		Severity: SeverityInfo,
		Message:  "hello",
		Raw:      "hello",
		Source:   "journal",
	}

	data, err := json.Marshal(ev.Wire())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, absent := range []string{"timestamp_monotonic", "timestamp_realtime", "cpu", "pid"} {
		if _, ok := raw[absent]; ok {
			t.Errorf("field %q present, want omitted", absent)
		}
	}
}

func TestNormalizeSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Severity
	}{
		{"ERROR", SeverityErr}, {"err", SeverityErr},
		{"WARNING", SeverityWarn}, {"warn", SeverityWarn},
		{"NOTE", SeverityNotice}, {"CRITICAL", SeverityCrit},
		{"EMERGENCY", SeverityEmerg}, {"PANIC", SeverityEmerg},
		{"INFORMATION", SeverityInfo}, {"debug", SeverityDebug},
		{"", SeverityInfo}, {"bogus", SeverityInfo},
		{"  ALERT  ", SeverityAlert},
	}
	for _, tt := range tests {
		if got := NormalizeSeverity(tt.in); got != tt.want {
			t.Errorf("NormalizeSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSeverityFromPriority(t *testing.T) {
	t.Parallel()

	want := []Severity{SeverityEmerg, SeverityAlert, SeverityCrit, SeverityErr, SeverityWarn, SeverityNotice, SeverityInfo, SeverityDebug}
	for p, expected := range want {
		got, ok := SeverityFromPriority(p)
		if !ok || got != expected {
			t.Errorf("SeverityFromPriority(%d) = %s,%v want %s", p, got, ok, expected)
		}
	}
	if _, ok := SeverityFromPriority(8); ok {
		t.Error("priority 8 should not map")
	}
}
