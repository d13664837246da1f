// Package history provides the fixed-capacity rolling store behind each
// channel's live trace. Insertion is O(1) and evicts the oldest entry when
// full, so memory stays bounded no matter how long a session runs.
package history

import (
	"errors"

	"github.com/strikeline/padmon/internal/wire"
)

// ErrCapacity is returned for a non-positive capacity.
var ErrCapacity = errors.New("history: capacity must be positive")

// Ring is a fixed-capacity FIFO of channel readings.
// Not safe for concurrent use — the ingestion engine synchronizes.
type Ring struct {
	buf   []wire.Reading
	head  int // next write position
	count int
	total uint64 // readings pushed since creation or last Clear
}

// NewRing allocates a ring with the given capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	return &Ring{buf: make([]wire.Reading, capacity)}, nil
}

// Push appends a reading, evicting the oldest when the ring is full.
func (r *Ring) Push(e wire.Reading) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.total++
}

// Len returns the number of stored readings.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the current capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Total returns the monotonic count of readings pushed since the last Clear.
func (r *Ring) Total() uint64 {
	return r.total
}

// Snapshot returns the stored readings oldest-first as a fresh slice,
// safe to hand out while further pushes mutate the ring.
func (r *Ring) Snapshot() []wire.Reading {
	if r.count == 0 {
		return nil
	}
	out := make([]wire.Reading, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Clear discards all readings and resets the push counter.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
	r.total = 0
}

// Resize changes the capacity. Growing preserves everything; shrinking
// keeps the newest entries and drops from the oldest end. The push counter
// is unaffected.
func (r *Ring) Resize(capacity int) error {
	if capacity <= 0 {
		return ErrCapacity
	}
	if capacity == len(r.buf) {
		return nil
	}

	kept := r.Snapshot()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}

	r.buf = make([]wire.Reading, capacity)
	r.head = copy(r.buf, kept) % capacity
	r.count = len(kept)
	return nil
}
