package history

import (
	"errors"
	"testing"

	"github.com/strikeline/padmon/internal/wire"
)

func reading(raw int) wire.Reading {
	return wire.Reading{Raw: raw}
}

func rawValues(entries []wire.Reading) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Raw
	}
	return out
}

func TestNewRingRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewRing(c); !errors.Is(err, ErrCapacity) {
			t.Errorf("capacity %d: got %v, want ErrCapacity", c, err)
		}
	}
}

func TestRingKeepsLastCapacityEntries(t *testing.T) {
	const capacity, pushes = 5, 12
	r, err := NewRing(capacity)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < pushes; i++ {
		r.Push(reading(i))
	}

	if r.Len() != capacity {
		t.Fatalf("len = %d, want %d", r.Len(), capacity)
	}
	if r.Total() != pushes {
		t.Errorf("total = %d, want %d", r.Total(), pushes)
	}

	got := rawValues(r.Snapshot())
	for i, v := range got {
		want := pushes - capacity + i // the last 5, in arrival order
		if v != want {
			t.Errorf("entry %d: got %d, want %d", i, v, want)
		}
	}
}

func TestRingPartialFill(t *testing.T) {
	r, _ := NewRing(10)
	r.Push(reading(1))
	r.Push(reading(2))

	got := rawValues(r.Snapshot())
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}
}

func TestRingSnapshotIsolation(t *testing.T) {
	r, _ := NewRing(3)
	r.Push(reading(1))
	snap := r.Snapshot()
	r.Push(reading(2))
	r.Push(reading(3))
	r.Push(reading(4))

	if len(snap) != 1 || snap[0].Raw != 1 {
		t.Errorf("earlier snapshot mutated: %v", rawValues(snap))
	}
	if r.Snapshot() == nil {
		t.Error("expected non-nil snapshot after pushes")
	}
}

func TestRingEmptySnapshot(t *testing.T) {
	r, _ := NewRing(4)
	if got := r.Snapshot(); got != nil {
		t.Errorf("expected nil snapshot, got %v", rawValues(got))
	}
}

func TestRingClear(t *testing.T) {
	r, _ := NewRing(4)
	for i := 0; i < 9; i++ {
		r.Push(reading(i))
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("len after clear = %d", r.Len())
	}
	if r.Total() != 0 {
		t.Errorf("total after clear = %d", r.Total())
	}

	// The ring must be usable again with correct ordering.
	r.Push(reading(42))
	got := rawValues(r.Snapshot())
	if len(got) != 1 || got[0] != 42 {
		t.Errorf("after clear got %v, want [42]", got)
	}
}

func TestRingResizeGrow(t *testing.T) {
	r, _ := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(reading(i)) // keeps 2,3,4
	}

	if err := r.Resize(6); err != nil {
		t.Fatal(err)
	}
	if r.Cap() != 6 {
		t.Fatalf("cap = %d, want 6", r.Cap())
	}

	got := rawValues(r.Snapshot())
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Fatalf("after grow got %v, want [2 3 4]", got)
	}

	r.Push(reading(5))
	got = rawValues(r.Snapshot())
	if len(got) != 4 || got[3] != 5 {
		t.Errorf("after grow+push got %v", got)
	}
}

func TestRingResizeShrinkKeepsNewest(t *testing.T) {
	r, _ := NewRing(10)
	for i := 0; i < 8; i++ {
		r.Push(reading(i))
	}

	if err := r.Resize(3); err != nil {
		t.Fatal(err)
	}

	got := rawValues(r.Snapshot())
	if len(got) != 3 || got[0] != 5 || got[1] != 6 || got[2] != 7 {
		t.Fatalf("after shrink got %v, want [5 6 7]", got)
	}

	// Eviction order stays correct after a shrink that filled the ring.
	r.Push(reading(8))
	got = rawValues(r.Snapshot())
	if len(got) != 3 || got[0] != 6 || got[2] != 8 {
		t.Errorf("after shrink+push got %v, want [6 7 8]", got)
	}
}

func TestRingResizeRejectsBadCapacity(t *testing.T) {
	r, _ := NewRing(4)
	if err := r.Resize(0); !errors.Is(err, ErrCapacity) {
		t.Errorf("got %v, want ErrCapacity", err)
	}
}
