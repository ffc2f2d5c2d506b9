package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/ringbuffer/internal/model"
)

func collectorServer(t *testing.T, got chan<- *collogspb.ExportLogsServiceRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-protobuf" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var req collogspb.ExportLogsServiceRequest
		if err := proto.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		got <- &req
		w.WriteHeader(http.StatusOK)
	}))
}

func exportEvent(sev model.Severity, msg string) *model.Event {
	cpu := 2
	pid := 4242
	return &model.Event{
		ID:        model.NewEventID(),
		Realtime:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Severity:  sev,
		Subsystem: "usb",
		Message:   msg,
		Raw:       msg,
		Source:    "dmesg",
		CPU:       &cpu,
		PID:       &pid,
	}
}

func TestExporter_FlushesBatchToCollector(t *testing.T) {
	got := make(chan *collogspb.ExportLogsServiceRequest, 1)
	srv := collectorServer(t, got)
	defer srv.Close()

	e := NewExporter(srv.URL + "/v1/logs")
	e.batchSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Enqueue(exportEvent(model.SeverityErr, "disk error"))
	e.Enqueue(exportEvent(model.SeverityInfo, "link up"))

	var req *collogspb.ExportLogsServiceRequest
	select {
	case req = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("collector never received a batch")
	}
	cancel()
	<-done

	rls := req.GetResourceLogs()
	if len(rls) != 1 {
		t.Fatalf("resource logs = %d, want 1", len(rls))
	}
	records := rls[0].GetScopeLogs()[0].GetLogRecords()
	if len(records) != 2 {
		t.Fatalf("log records = %d, want 2", len(records))
	}

	first := records[0]
	if first.GetSeverityText() != "ERR" {
		t.Errorf("severity text = %s", first.GetSeverityText())
	}
	if first.GetSeverityNumber() != logspb.SeverityNumber_SEVERITY_NUMBER_ERROR {
		t.Errorf("severity number = %v", first.GetSeverityNumber())
	}
	if first.GetBody().GetStringValue() != "disk error" {
		t.Errorf("body = %q", first.GetBody().GetStringValue())
	}

	var subsystem, pid string
	for _, kv := range first.GetAttributes() {
		switch kv.GetKey() {
		case "kernel.subsystem":
			subsystem = kv.GetValue().GetStringValue()
		case "process.pid":
			pid = kv.GetValue().String()
		}
	}
	if subsystem != "usb" {
		t.Errorf("kernel.subsystem = %q", subsystem)
	}
	if pid == "" {
		t.Error("process.pid attribute missing")
	}
}

func TestExporter_FlushesOnShutdown(t *testing.T) {
	got := make(chan *collogspb.ExportLogsServiceRequest, 1)
	srv := collectorServer(t, got)
	defer srv.Close()

	e := NewExporter(srv.URL + "/v1/logs")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Enqueue(exportEvent(model.SeverityInfo, "single event"))
	// Give Run a moment to pull the event into its batch.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	select {
	case req := <-got:
		records := req.GetResourceLogs()[0].GetScopeLogs()[0].GetLogRecords()
		if len(records) != 1 {
			t.Errorf("log records = %d, want 1", len(records))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not flush the partial batch")
	}
}

func TestSeverityNumber(t *testing.T) {
	cases := []struct {
		sev  model.Severity
		want logspb.SeverityNumber
	}{
		{model.SeverityEmerg, logspb.SeverityNumber_SEVERITY_NUMBER_FATAL},
		{model.SeverityAlert, logspb.SeverityNumber_SEVERITY_NUMBER_FATAL},
		{model.SeverityCrit, logspb.SeverityNumber_SEVERITY_NUMBER_ERROR},
		{model.SeverityErr, logspb.SeverityNumber_SEVERITY_NUMBER_ERROR},
		{model.SeverityWarn, logspb.SeverityNumber_SEVERITY_NUMBER_WARN},
		{model.SeverityNotice, logspb.SeverityNumber_SEVERITY_NUMBER_INFO2},
		{model.SeverityInfo, logspb.SeverityNumber_SEVERITY_NUMBER_INFO},
		{model.SeverityDebug, logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG},
	}
	for _, tc := range cases {
		if got := severityNumber(tc.sev); got != tc.want {
			t.Errorf("severityNumber(%s) = %v, want %v", tc.sev, got, tc.want)
		}
	}
}
