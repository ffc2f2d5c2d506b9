// Package probe performs cheap, timeout-bounded checks of which external
// kernel log tools are invocable. The engine runs it once at initialization
// to select an adapter.
package probe

import (
	"context"
	"errors"
	"io"
	"log"
	"os/exec"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/logsource"
)

const (
	// DefaultTimeout bounds each probe invocation.
	DefaultTimeout = 2 * time.Second

	// watchTimeout is deliberately short: a follow-mode tool that blocks
	// waiting for new data is working, so a timeout counts as success.
	watchTimeout = 500 * time.Millisecond
)

type runFunc func(ctx context.Context, argv ...string) error

// Checker probes the host for available kernel log sources.
type Checker struct {
	timeout time.Duration
	run     runFunc
}

// New returns a Checker with the default probe timeout.
func New() *Checker {
	return &Checker{timeout: DefaultTimeout, run: runCommand}
}

// AvailableSources reports the usable source identifiers in preference
// order: the ring-buffer tool first, then the structured log service.
func (c *Checker) AvailableSources(ctx context.Context) []string {
	var sources []string
	if c.CanReadDmesg(ctx) {
		sources = append(sources, logsource.SourceDmesg)
	}
	if c.CanUseJournal(ctx) {
		sources = append(sources, logsource.SourceJournal)
	}
	return sources
}

// CanReadDmesg checks one-shot ring buffer access by exit status.
func (c *Checker) CanReadDmesg(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.run(ctx, "dmesg"); err != nil {
		log.Printf("probe: dmesg check failed: %v", err)
		return false
	}
	return true
}

// CanWatchDmesg checks follow-mode ring buffer access. The tool blocking on
// new data trips the timeout, which indicates it works.
func (c *Checker) CanWatchDmesg(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()

	err := c.run(ctx, "dmesg", "-w")
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	log.Printf("probe: dmesg -w check failed: %v", err)
	return false
}

// CanUseJournal checks kernel log access through the journal daemon.
func (c *Checker) CanUseJournal(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.run(ctx, "journalctl", "-k", "-n", "1"); err != nil {
		log.Printf("probe: journalctl check failed: %v", err)
		return false
	}
	return true
}

func runCommand(ctx context.Context, argv ...string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	err := cmd.Run()
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}
