// Package export ships buffered kernel events to an OTLP/HTTP logs
// collector.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
)

const (
	// DefaultBatchSize flushes once this many events are queued.
	DefaultBatchSize = 128
	// DefaultFlushInterval flushes a partial batch after this long.
	DefaultFlushInterval = 5 * time.Second

	queueSize      = 1024
	requestTimeout = 10 * time.Second
	serviceName    = "ringbuffer"
)

// Exporter batches events and posts them to an OTLP/HTTP collector as
// protobuf-encoded ExportLogsServiceRequests.
type Exporter struct {
	endpoint      string
	client        *http.Client
	batchSize     int
	flushInterval time.Duration
	queue         chan *model.Event
}

// NewExporter creates an exporter targeting the collector's /v1/logs
// endpoint.
func NewExporter(endpoint string) *Exporter {
	return &Exporter{
		endpoint:      endpoint,
		client:        &http.Client{Timeout: requestTimeout},
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		queue:         make(chan *model.Event, queueSize),
	}
}

// Enqueue is the engine subscriber. It never blocks; events beyond
// the queue capacity are dropped.
func (e *Exporter) Enqueue(ev *model.Event) {
	select {
	case e.queue <- ev:
	default:
		metrics.ExportFailures.Inc()
	}
}

// Run drains the queue until ctx is cancelled, flushing on batch size
// or interval, then flushes the remainder.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	batch := make([]*model.Event, 0, e.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := e.export(batch); err != nil {
			metrics.ExportFailures.Inc()
			log.Printf("export: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev := <-e.queue:
			batch = append(batch, ev)
			if len(batch) >= e.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (e *Exporter) export(events []*model.Event) error {
	req := buildRequest(events)
	payload, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("export: marshal: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("export: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("export: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("export: collector returned %s", resp.Status)
	}
	return nil
}

func buildRequest(events []*model.Event) *collogspb.ExportLogsServiceRequest {
	records := make([]*logspb.LogRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, toLogRecord(ev))
	}

	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					strAttr("service.name", serviceName),
				},
			},
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: serviceName},
				LogRecords: records,
			}},
		}},
	}
}

func toLogRecord(ev *model.Event) *logspb.LogRecord {
	attrs := []*commonpb.KeyValue{
		strAttr("log.record.uid", ev.ID),
		strAttr("kernel.subsystem", ev.Subsystem),
		strAttr("log.source", ev.Source),
	}
	if ev.CPU != nil {
		attrs = append(attrs, intAttr("kernel.cpu", int64(*ev.CPU)))
	}
	if ev.PID != nil {
		attrs = append(attrs, intAttr("process.pid", int64(*ev.PID)))
	}

	return &logspb.LogRecord{
		TimeUnixNano:   uint64(ev.Realtime.UnixNano()),
		SeverityNumber: severityNumber(ev.Severity),
		SeverityText:   string(ev.Severity),
		Body: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: ev.Message},
		},
		Attributes: attrs,
	}
}

// severityNumber maps the syslog-derived levels onto OTLP severity
// numbers.
func severityNumber(sev model.Severity) logspb.SeverityNumber {
	switch sev {
	case model.SeverityEmerg, model.SeverityAlert:
		return logspb.SeverityNumber_SEVERITY_NUMBER_FATAL
	case model.SeverityCrit, model.SeverityErr:
		return logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
	case model.SeverityWarn:
		return logspb.SeverityNumber_SEVERITY_NUMBER_WARN
	case model.SeverityNotice:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO2
	case model.SeverityDebug:
		return logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	default:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	}
}

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func intAttr(key string, value int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value}},
	}
}
