package builtin

import (
	"context"
	"sync"
	"testing"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

type recordingContext struct {
	mu          sync.Mutex
	annotations map[string][]string
	warnings    []string
	panels      map[string]any
}

func newRecordingContext() *recordingContext {
	return &recordingContext{
		annotations: make(map[string][]string),
		panels:      make(map[string]any),
	}
}

func (r *recordingContext) RegisterAnnotation(eventID, text string) {
	r.mu.Lock()
	r.annotations[eventID] = append(r.annotations[eventID], text)
	r.mu.Unlock()
}

func (r *recordingContext) EmitWarning(text string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, text)
	r.mu.Unlock()
}

func (r *recordingContext) AddPanel(name string, content any) {
	r.mu.Lock()
	r.panels[name] = content
	r.mu.Unlock()
}

func (r *recordingContext) GetEventByID(string) *model.Event { return nil }

func kernelEvent(subsystem, message string) *model.Event {
	return &model.Event{
		ID:        model.NewEventID(),
		Severity:  model.SeverityInfo,
		Subsystem: subsystem,
		Message:   message,
	}
}

func loadPlugin(t *testing.T, p plugin.Plugin) *recordingContext {
	t.Helper()
	rc := newRecordingContext()
	if err := p.OnLoad(context.Background(), rc); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	return rc
}

func TestUSBWatcher(t *testing.T) {
	t.Parallel()

	cases := []struct {
		subsystem, message string
		want               string
	}{
		{"usb 1-2", "new high-speed USB device number 4", "USB device connected"},
		{"usb 1-2", "USB disconnect, device number 4", "USB device disconnected"},
		{"usb 1-2", "device descriptor read/64, error -71", "USB error detected"},
		{"KERNEL", "new device registered", ""},
	}
	for _, tc := range cases {
		p := NewUSBWatcher()
		rc := loadPlugin(t, p)
		ev := kernelEvent(tc.subsystem, tc.message)
		if err := p.OnEvent(context.Background(), ev); err != nil {
			t.Fatalf("OnEvent: %v", err)
		}
		got := rc.annotations[ev.ID]
		if tc.want == "" {
			if len(got) != 0 {
				t.Errorf("%q: unexpected annotations %v", tc.message, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != tc.want {
			t.Errorf("%q: annotations = %v, want [%s]", tc.message, got, tc.want)
		}
	}
}

func TestOOMDetector_CountsKillsAndWarns(t *testing.T) {
	t.Parallel()

	p := NewOOMDetector()
	rc := loadPlugin(t, p)

	first := kernelEvent("KERNEL", "Out of memory: oom-kill process 1234 (chrome)")
	second := kernelEvent("KERNEL", "oom killer invoked by java")
	for _, ev := range []*model.Event{first, second} {
		if err := p.OnEvent(context.Background(), ev); err != nil {
			t.Fatalf("OnEvent: %v", err)
		}
	}

	if p.Kills() != 2 {
		t.Errorf("Kills() = %d, want 2", p.Kills())
	}
	if got := rc.annotations[second.ID]; len(got) != 1 || got[0] != "OOM kill #2" {
		t.Errorf("annotations = %v, want [OOM kill #2]", got)
	}
	if len(rc.warnings) != 2 {
		t.Errorf("warnings = %v, want two", rc.warnings)
	}

	pressure := kernelEvent("KERNEL", "system under memory pressure")
	if err := p.OnEvent(context.Background(), pressure); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if got := rc.annotations[pressure.ID]; len(got) != 1 || got[0] != "memory pressure" {
		t.Errorf("pressure annotations = %v", got)
	}
}

func TestSecurityMonitor(t *testing.T) {
	t.Parallel()

	p := NewSecurityMonitor()
	rc := loadPlugin(t, p)

	apparmor := kernelEvent("audit", `apparmor="DENIED" operation="open" profile="snap.firefox"`)
	selinux := kernelEvent("audit", "SELinux: access denied for pid 99")
	benign := kernelEvent("audit", "apparmor profile loaded")
	for _, ev := range []*model.Event{apparmor, selinux, benign} {
		if err := p.OnEvent(context.Background(), ev); err != nil {
			t.Fatalf("OnEvent: %v", err)
		}
	}

	if got := rc.annotations[apparmor.ID]; len(got) != 1 || got[0] != "AppArmor denial #1" {
		t.Errorf("apparmor annotations = %v", got)
	}
	if got := rc.annotations[selinux.ID]; len(got) != 1 || got[0] != "SELinux denial" {
		t.Errorf("selinux annotations = %v", got)
	}
	if len(rc.annotations[benign.ID]) != 0 {
		t.Errorf("benign event annotated: %v", rc.annotations[benign.ID])
	}
}

func TestDrain3Manager_AddLogMessage(t *testing.T) {
	t.Parallel()

	dm := NewDrain3Manager()
	dm.AddLogMessage("Connection refused from 192.168.1.1")
	dm.AddLogMessage("Connection refused from 10.0.0.1")
	dm.AddLogMessage("Connection refused from 172.16.0.1")

	if patterns := dm.GetTopPatterns(10); len(patterns) == 0 {
		t.Fatal("expected at least one pattern")
	}
	if _, total := dm.GetStats(); total != 3 {
		t.Errorf("total logs = %d, want 3", total)
	}
}

func TestDrain3Manager_EmptyMessagesSkipped(t *testing.T) {
	t.Parallel()

	dm := NewDrain3Manager()
	dm.AddLogMessage("")
	dm.AddLogMessage("   ")

	if _, total := dm.GetStats(); total != 0 {
		t.Errorf("total logs = %d, want 0", total)
	}
}

func TestDrain3Manager_Reset(t *testing.T) {
	t.Parallel()

	dm := NewDrain3Manager()
	dm.AddLogMessage("test message")
	dm.Reset()

	if patterns := dm.GetTopPatterns(10); len(patterns) != 0 {
		t.Errorf("patterns after reset = %d, want 0", len(patterns))
	}
	if _, total := dm.GetStats(); total != 0 {
		t.Errorf("total logs after reset = %d, want 0", total)
	}
}

func TestDrain3Manager_GetTopPatterns_SortedAndLimited(t *testing.T) {
	t.Parallel()

	dm := NewDrain3Manager()
	for i := 0; i < 10; i++ {
		dm.AddLogMessage("frequent pattern message here")
	}
	for i := 0; i < 3; i++ {
		dm.AddLogMessage("rare pattern something")
	}

	patterns := dm.GetTopPatterns(10)
	if len(patterns) < 2 {
		t.Skipf("miner merged patterns, got %d (expected 2+)", len(patterns))
	}
	for i := 1; i < len(patterns); i++ {
		if patterns[i].Count > patterns[i-1].Count {
			t.Errorf("patterns not sorted: index %d count %d > index %d count %d",
				i, patterns[i].Count, i-1, patterns[i-1].Count)
		}
	}
	if limited := dm.GetTopPatterns(1); len(limited) > 1 {
		t.Errorf("GetTopPatterns(1) returned %d patterns", len(limited))
	}
}

func TestDrain3Manager_Percentages(t *testing.T) {
	t.Parallel()

	dm := NewDrain3Manager()
	for i := 0; i < 10; i++ {
		dm.AddLogMessage("test message")
	}

	patterns := dm.GetTopPatterns(10)
	if len(patterns) == 0 {
		t.Fatal("expected patterns")
	}
	totalPct := 0.0
	for _, p := range patterns {
		totalPct += p.Percentage
	}
	if totalPct < 99.0 || totalPct > 101.0 {
		t.Errorf("total percentage = %.1f, want ~100", totalPct)
	}
}

func TestPatternSummary_ClustersAndPublishes(t *testing.T) {
	t.Parallel()

	p := NewPatternSummary()
	rc := loadPlugin(t, p)

	lines := []string{
		"usb 1-2: new device number 4",
		"usb 1-3: new device number 7",
		"usb 2-1: new device number 9",
	}
	for _, line := range lines {
		ev := kernelEvent("usb", line)
		if err := p.OnEvent(context.Background(), ev); err != nil {
			t.Fatalf("OnEvent: %v", err)
		}
	}

	panel, ok := rc.panels[patternPanelName]
	if !ok {
		t.Fatal("pattern panel not published")
	}
	top, ok := panel.([]Pattern)
	if !ok || len(top) == 0 {
		t.Fatalf("panel content = %#v, want mined patterns", panel)
	}
	if top[0].Count < 1 || top[0].Template == "" {
		t.Errorf("top pattern = %+v", top[0])
	}
	total := 0
	for _, pat := range top {
		total += pat.Count
	}
	if total != len(lines) {
		t.Errorf("pattern counts sum to %d, want %d", total, len(lines))
	}
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry()
	if err := RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	names := r.Names()
	want := []string{"oom-detector", "pattern-summary", "security-monitor", "usb-watcher"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
