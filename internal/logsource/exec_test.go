package logsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/logparse"
)

func testSource(name string, snapshotArgv, streamArgv []string, bufferSize int) *execSource {
	return &execSource{
		name:         name,
		snapshotArgv: snapshotArgv,
		streamArgv:   streamArgv,
		bufferSize:   bufferSize,
		parser:       logparse.NewParser(time.Time{}),
	}
}

func TestSnapshot_ParsesAndCaps(t *testing.T) {
	t.Parallel()

	script := `printf '[1.0] usb: one\n[2.0] usb: two\n[3.0] usb: three\n'`
	src := testSource("dmesg", []string{"sh", "-c", script}, nil, 2)

	events, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (capped to buffer size)", len(events))
	}
	if events[0].Message != "two" || events[1].Message != "three" {
		t.Errorf("kept wrong lines: %q, %q (want most recent)", events[0].Message, events[1].Message)
	}
	for _, ev := range events {
		if ev.Source != "dmesg" {
			t.Errorf("source = %q, want dmesg", ev.Source)
		}
	}
}

func TestSnapshot_SkipsUnparsableLines(t *testing.T) {
	t.Parallel()

	script := `printf '[1.0] usb: ok\nnot a kernel line\n[2.0] usb: ok too\n'`
	src := testSource("dmesg", []string{"sh", "-c", script}, nil, 0)

	events, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2 (unparsable line dropped)", len(events))
	}
}

func TestSnapshot_MissingBinaryIsSourceUnavailable(t *testing.T) {
	t.Parallel()

	src := testSource("dmesg", []string{"ringbuffer-no-such-tool"}, nil, 0)
	_, err := src.Snapshot(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestSnapshot_NonzeroExitIsPermissionDenied(t *testing.T) {
	t.Parallel()

	src := testSource("dmesg", []string{"sh", "-c", "exit 1"}, nil, 0)
	_, err := src.Snapshot(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestStream_EmitsEventsAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	script := `printf '[1.0] usb: alpha\n[2.0] usb: beta\n'; sleep 30`
	src := testSource("dmesg", nil, []string{"sh", "-c", script}, 0)

	ch, err := src.Stream(ctx)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed early, got %v", got)
			}
			got = append(got, ev.Message)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	if got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("events = %v, want [alpha beta]", got)
	}

	// Cancellation must terminate the child and close the channel.
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// Drain any buffered event; the close must still arrive.
			for range ch {
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream channel not closed after cancel")
	}
}

func TestStream_MissingBinaryIsSourceUnavailable(t *testing.T) {
	t.Parallel()

	src := testSource("dmesg", nil, []string{"ringbuffer-no-such-tool"}, 0)
	_, err := src.Stream(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	parser := logparse.NewParser(time.Time{})
	for _, name := range []string{SourceDmesg, SourceJournal} {
		src, err := ByName(name, parser, 100)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if src.Name() != name {
			t.Errorf("Name() = %q, want %q", src.Name(), name)
		}
	}
	if _, err := ByName("syslog", parser, 100); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("unknown source err = %v, want ErrSourceUnavailable", err)
	}
}
