package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"syscall"

	"github.com/tinytelemetry/ringbuffer/internal/logparse"
	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
)

// execSource implements Source on top of an external log-reporting tool
// invoked as a child process. The two shipped adapters differ only in
// argv; both decode stdout permissively and surface only lines that parse.
type execSource struct {
	name         string
	snapshotArgv []string
	streamArgv   []string
	bufferSize   int
	parser       *logparse.Parser
}

func (s *execSource) Name() string { return s.name }

// Snapshot runs the one-shot form of the tool and parses its output,
// capped to the bufferSize most recent lines.
func (s *execSource) Snapshot(ctx context.Context) ([]*model.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSnapshotTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.snapshotArgv[0], s.snapshotArgv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, s.classify(err, ctx)
	}

	lines := strings.Split(strings.TrimSpace(decode(out)), "\n")
	if s.bufferSize > 0 && len(lines) > s.bufferSize {
		lines = lines[len(lines)-s.bufferSize:]
	}

	events := make([]*model.Event, 0, len(lines))
	for _, line := range lines {
		if ev := s.parser.Parse(line, s.name); ev != nil {
			events = append(events, ev)
		} else if strings.TrimSpace(line) != "" {
			metrics.LinesDropped.Inc()
		}
	}
	return events, nil
}

// Stream starts the follow form of the tool and emits parsed events until
// ctx is cancelled. The child is asked to terminate with SIGTERM and is
// killed after a bounded grace period; it is never left running once the
// returned channel closes.
func (s *execSource) Stream(ctx context.Context) (<-chan *model.Event, error) {
	cmd := exec.CommandContext(ctx, s.streamArgv[0], s.streamArgv[1:]...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGracePeriod
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("logsource: %s stdout pipe: %w", s.name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, s.classify(err, ctx)
	}

	ch := make(chan *model.Event, DefaultStreamBuffer)
	go func() {
		defer close(ch)
		// Wait reaps the child after SIGTERM/SIGKILL; the stream contract
		// guarantees no orphaned process once ch closes.
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, MaxLineBytes), MaxLineBytes)

		for scanner.Scan() {
			line := decode(scanner.Bytes())
			ev := s.parser.Parse(line, s.name)
			if ev == nil {
				if strings.TrimSpace(line) != "" {
					metrics.LinesDropped.Inc()
				}
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Printf("logsource: %s stream read error: %v", s.name, err)
		}
	}()

	return ch, nil
}

// classify maps child-process failures onto the source error taxonomy.
func (s *execSource) classify(err error, ctx context.Context) error {
	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("logsource: %s not found: %w", s.name, ErrSourceUnavailable)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("logsource: %s timed out: %w", s.name, ErrSourceUnavailable)
	case errors.As(err, &exitErr):
		return fmt.Errorf("logsource: %s exited %d: %w", s.name, exitErr.ExitCode(), ErrPermissionDenied)
	default:
		return fmt.Errorf("logsource: %s: %w", s.name, err)
	}
}

// decode replaces undecodable bytes instead of failing the line.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
