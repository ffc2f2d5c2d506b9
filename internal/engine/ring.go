package engine

import "github.com/tinytelemetry/ringbuffer/internal/model"

// ringBuffer is a fixed-capacity event buffer. Appending past capacity
// silently evicts the oldest entry; this is the pipeline's backpressure
// mechanism, so the buffer never grows without bound.
type ringBuffer struct {
	entries []*model.Event
	head    int
	size    int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = model.DefaultBufferSize
	}
	return &ringBuffer{entries: make([]*model.Event, capacity)}
}

// Append stores ev, evicting the oldest entry when full. It reports whether
// an eviction happened.
func (r *ringBuffer) Append(ev *model.Event) bool {
	if r.size < len(r.entries) {
		r.entries[(r.head+r.size)%len(r.entries)] = ev
		r.size++
		return false
	}
	r.entries[r.head] = ev
	r.head = (r.head + 1) % len(r.entries)
	return true
}

// Last returns the most recently appended entry, or nil when empty.
func (r *ringBuffer) Last() *model.Event {
	if r.size == 0 {
		return nil
	}
	return r.entries[(r.head+r.size-1)%len(r.entries)]
}

// Snapshot returns the entries oldest-first.
func (r *ringBuffer) Snapshot() []*model.Event {
	out := make([]*model.Event, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)])
	}
	return out
}

func (r *ringBuffer) Len() int { return r.size }

func (r *ringBuffer) Clear() {
	for i := range r.entries {
		r.entries[i] = nil
	}
	r.head = 0
	r.size = 0
}
