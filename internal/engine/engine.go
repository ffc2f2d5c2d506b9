// Package engine owns the bounded event buffer and the single consumption
// loop over a source adapter's live stream. All buffer writes happen under
// the engine mutex, and no buffered event pointer ever leaves it: readers
// and subscribers receive clones, so later merges and annotations cannot
// race anything published earlier.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/logparse"
	"github.com/tinytelemetry/ringbuffer/internal/logsource"
	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/probe"
)

// DefaultPausePoll is how often the paused loop rechecks its flags.
const DefaultPausePoll = 100 * time.Millisecond

// AnnotationNotes is the annotation key plugin notes accumulate under.
const AnnotationNotes = "notes"

// ErrNotInitialized is returned by operations that need a selected source.
var ErrNotInitialized = errors.New("engine: not initialized")

// Subscriber receives each accepted event during fan-out. Callbacks run
// sequentially, in registration order, on the consumption loop. Each
// callback gets its own copy of the event: it may hand it to another
// goroutine, and writes to it are invisible to the buffer and to other
// subscribers.
type Subscriber func(*model.Event)

// Subscription identifies a registered subscriber for removal.
type Subscription struct {
	id uint64
}

type subEntry struct {
	id uint64
	fn Subscriber
}

// Config tunes an Engine. Zero values take sensible defaults; the probe and
// source factory hooks exist so tests and fallback-driving callers can
// substitute fakes.
type Config struct {
	BufferSize int
	PausePoll  time.Duration
	Parser     *logparse.Parser

	// AvailableSources reports usable source names in preference order.
	// Defaults to the capability probe.
	AvailableSources func(ctx context.Context) []string

	// NewSource constructs the adapter for a source name.
	NewSource func(name string) (logsource.Source, error)
}

// Engine ingests, buffers and fans out kernel events.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	buf     *ringBuffer
	source  logsource.Source
	running bool
	paused  bool
	subs    []subEntry
	nextSub uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = model.DefaultBufferSize
	}
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = DefaultPausePoll
	}
	if cfg.Parser == nil {
		cfg.Parser = logparse.NewParser(logparse.DetectBootTime())
	}
	if cfg.AvailableSources == nil {
		checker := probe.New()
		cfg.AvailableSources = checker.AvailableSources
	}
	if cfg.NewSource == nil {
		parser := cfg.Parser
		size := cfg.BufferSize
		cfg.NewSource = func(name string) (logsource.Source, error) {
			return logsource.ByName(name, parser, size)
		}
	}
	return &Engine{
		cfg: cfg,
		buf: newRingBuffer(cfg.BufferSize),
	}
}

// Initialize probes for available sources and selects one, preferring the
// ring-buffer tool. It fails when no source is usable; the caller may retry
// or attach an adapter explicitly.
func (e *Engine) Initialize(ctx context.Context) error {
	names := e.cfg.AvailableSources(ctx)
	if len(names) == 0 {
		return fmt.Errorf("engine: no kernel log source available: %w", logsource.ErrSourceUnavailable)
	}

	src, err := e.cfg.NewSource(names[0])
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.source = src
	e.mu.Unlock()

	log.Printf("engine: using %s as primary source", src.Name())
	return nil
}

// AttachSource sets the adapter directly, bypassing the probe. Used by
// callers implementing their own fallback between adapters.
func (e *Engine) AttachSource(src logsource.Source) {
	e.mu.Lock()
	e.source = src
	e.mu.Unlock()
}

// SourceName reports the selected adapter, or "" before initialization.
func (e *Engine) SourceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil {
		return ""
	}
	return e.source.Name()
}

// LoadSnapshot loads the initial backlog from the selected source into the
// buffer and returns it.
func (e *Engine) LoadSnapshot(ctx context.Context) ([]*model.Event, error) {
	e.mu.Lock()
	src := e.source
	e.mu.Unlock()
	if src == nil {
		return nil, ErrNotInitialized
	}

	events, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	}

	e.mu.Lock()
	out := make([]*model.Event, 0, len(events))
	for _, ev := range events {
		if e.buf.Append(ev) {
			metrics.EventsEvicted.Inc()
		}
		metrics.EventsIngested.Inc()
		out = append(out, ev.Clone())
	}
	metrics.BufferSize.Set(float64(e.buf.Len()))
	e.mu.Unlock()

	log.Printf("engine: loaded %d events from snapshot", len(events))
	return out, nil
}

// StartStreaming starts the single consumption loop over the source's live
// stream. Starting while already running is a no-op with a warning.
func (e *Engine) StartStreaming(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		log.Printf("engine: already streaming")
		return nil
	}
	src := e.source
	if src == nil {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	// Claim the flag before opening the stream so a concurrent caller
	// cannot spawn a second consumption loop while this one sets up.
	e.running = true
	e.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	ch, err := src.Stream(streamCtx)
	if err != nil {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("engine: start streaming: %w", err)
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.run(streamCtx, ch, done)
	log.Printf("engine: streaming started")
	return nil
}

// StopStreaming cancels the consumption loop and waits for it to finish, so
// no buffer write can occur after it returns.
func (e *Engine) StopStreaming() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Printf("engine: streaming stopped")
}

// run is the consumption loop. Pausing withholds consumption from the
// upstream stream entirely (back-pressuring the source through its channel
// and pipe) rather than merely suppressing delivery.
func (e *Engine) run(ctx context.Context, ch <-chan *model.Event, done chan struct{}) {
	defer close(done)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		for e.Paused() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.PausePoll):
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.PausePoll):
			// Wake up to re-check the pause flag; a pause must take
			// effect even while no events arrive.
		case ev, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					log.Printf("engine: stream ended unexpectedly")
				}
				return
			}
			e.ingest(ev)
		}
	}
}

// ingest merges or appends one event and fans it out to subscribers.
func (e *Engine) ingest(ev *model.Event) {
	e.mu.Lock()
	var accepted *model.Event
	if last := e.buf.Last(); ev.IsContinuation() && last != nil {
		last.Message += "\n" + ev.Message
		last.Raw += "\n" + ev.Raw
		for k, v := range ev.Annotations {
			last.Annotate(k, v)
		}
		accepted = last
		metrics.EventsMerged.Inc()
	} else {
		if e.buf.Append(ev) {
			metrics.EventsEvicted.Inc()
		}
		metrics.EventsIngested.Inc()
		accepted = ev
	}
	metrics.BufferSize.Set(float64(e.buf.Len()))
	subs := slices.Clone(e.subs)
	out := accepted.Clone()
	e.mu.Unlock()

	for _, s := range subs {
		e.notify(s, out.Clone())
	}
}

// notify invokes one callback, containing any panic so a misbehaving
// subscriber cannot stop the loop or starve later subscribers.
func (e *Engine) notify(s subEntry, ev *model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberErrors.Inc()
			log.Printf("engine: subscriber callback error: %v", r)
		}
	}()
	s.fn(ev)
}

// Subscribe registers a callback for every accepted event. Safe to call
// while the loop is running.
func (e *Engine) Subscribe(fn Subscriber) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	e.subs = append(e.subs, subEntry{id: e.nextSub, fn: fn})
	return &Subscription{id: e.nextSub}
}

// Unsubscribe removes a previously registered callback. The removed
// callback receives no further events.
func (e *Engine) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = slices.DeleteFunc(e.subs, func(s subEntry) bool {
		return s.id == sub.id
	})
}

// Pause halts consumption; the upstream stream is no longer drained. It
// does not stop the loop.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Buffer returns a point-in-time snapshot of buffer contents, oldest
// first. The entries are clones; later merges and annotations land on
// the buffered originals only.
func (e *Engine) Buffer() []*model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.buf.Snapshot()
	out := make([]*model.Event, len(entries))
	for i, ev := range entries {
		out[i] = ev.Clone()
	}
	return out
}

// EventByID finds a buffered event, scanning newest-first. The result
// is a clone reflecting the event at the time of the call.
func (e *Engine) EventByID(id string) (*model.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.buf.Snapshot()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == id {
			return entries[i].Clone(), true
		}
	}
	return nil, false
}

// Annotate appends a plugin note to a buffered event's annotations. The
// notes slice is replaced, never grown in place, so clones handed out
// earlier keep their own view.
func (e *Engine) Annotate(id, text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.buf.Snapshot()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == id {
			notes, _ := entries[i].Annotations[AnnotationNotes].([]string)
			entries[i].Annotate(AnnotationNotes, append(slices.Clone(notes), text))
			return true
		}
	}
	return false
}

// FlushBuffer clears the buffer.
func (e *Engine) FlushBuffer() {
	e.mu.Lock()
	e.buf.Clear()
	metrics.BufferSize.Set(0)
	e.mu.Unlock()
	log.Printf("engine: event buffer flushed")
}

// Shutdown stops streaming and clears the buffer.
func (e *Engine) Shutdown() {
	e.StopStreaming()
	e.FlushBuffer()
	log.Printf("engine: shutdown complete")
}
