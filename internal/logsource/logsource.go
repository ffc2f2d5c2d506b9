package logsource

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/logparse"
	"github.com/tinytelemetry/ringbuffer/internal/model"
)

const (
	// DefaultSnapshotTimeout bounds the one-shot snapshot invocation.
	DefaultSnapshotTimeout = 5 * time.Second

	// MaxLineBytes caps a single streamed line. Kernel log lines are short;
	// anything larger is treated as a stream fault.
	MaxLineBytes = 4096

	// DefaultStreamBuffer is the stream channel capacity. Once it fills the
	// reader goroutine blocks, which in turn back-pressures the child
	// process through its stdout pipe.
	DefaultStreamBuffer = 256

	// killGracePeriod is how long a child process gets between SIGTERM and
	// SIGKILL when a stream is cancelled.
	killGracePeriod = 2 * time.Second
)

// Source names.
const (
	SourceDmesg   = "dmesg"
	SourceJournal = "journal"
)

// Source is a unified interface for kernel log adapters. Snapshot returns a
// finite backlog; Stream produces events until cancelled. A Source's stream
// is not restartable: call Stream at most once per Source value.
type Source interface {
	Name() string
	Snapshot(ctx context.Context) ([]*model.Event, error)
	Stream(ctx context.Context) (<-chan *model.Event, error)
}

// NewDmesgSource reads the kernel ring buffer via dmesg.
func NewDmesgSource(parser *logparse.Parser, bufferSize int) Source {
	return &execSource{
		name:         SourceDmesg,
		snapshotArgv: []string{"dmesg", "-L"},
		streamArgv:   []string{"dmesg", "-w", "-L"},
		bufferSize:   bufferSize,
		parser:       parser,
	}
}

// NewJournalSource reads kernel messages via the journal daemon.
func NewJournalSource(parser *logparse.Parser, bufferSize int) Source {
	return &execSource{
		name:         SourceJournal,
		snapshotArgv: []string{"journalctl", "-k", "-n", fmt.Sprintf("%d", bufferSize), "-o", "short"},
		streamArgv:   []string{"journalctl", "-k", "-f", "-o", "short"},
		bufferSize:   bufferSize,
		parser:       parser,
	}
}

// ByName constructs the adapter for a probe-reported source identifier.
func ByName(name string, parser *logparse.Parser, bufferSize int) (Source, error) {
	switch name {
	case SourceDmesg:
		return NewDmesgSource(parser, bufferSize), nil
	case SourceJournal:
		return NewJournalSource(parser, bufferSize), nil
	default:
		return nil, fmt.Errorf("logsource: unknown source %q: %w", name, ErrSourceUnavailable)
	}
}
