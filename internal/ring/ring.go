// ring.go: lock-free MPSC ring buffer with drop-oldest overwrite semantics
//
// Generalized from the teacher's internal/zephyroslite.ZephyrosLight, which
// is a drop-NEWEST-on-full MPSC queue continuously drained by a consumer
// loop (ProcessBatch/LoopProcess, gated by an IdleStrategy). This buffer
// instead drops the OLDEST element on full and is drained only by a
// one-shot TakeSnapshot — there is no continuous consumer loop, so the
// BackpressurePolicy/IdleStrategy/Builder machinery the teacher needs for
// that loop has no equivalent here. Capacity is not required to be a power
// of two; slot indexing uses modulo instead of the teacher's bitmask.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ring

// PushOutcome reports whether a push overwrote an existing element.
type PushOutcome int

const (
	// Accepted means the push landed in a previously-empty slot.
	Accepted PushOutcome = iota
	// Overwrote means the push evicted the oldest buffered element.
	Overwrote
)

// Buffer is a bounded multi-producer/single-consumer queue of T with
// overwrite-on-full semantics. Producers call PushOverwrite concurrently
// from any goroutine; only the writer task may call TakeSnapshot.
type Buffer[T any] struct {
	slots    []T
	avail    []PaddedInt64 // avail[i] == seq+1 once slots[i] holds sequence seq
	capacity int64

	writer PaddedInt64 // next sequence number to be claimed
	reader PaddedInt64 // oldest sequence number still considered live

	dropped PaddedInt64
	pushed  PaddedInt64
}

// New creates a Buffer with room for capacity elements. Returns
// ErrInvalidCapacity if capacity <= 0.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	b := &Buffer[T]{
		slots:    make([]T, capacity),
		avail:    make([]PaddedInt64, capacity),
		capacity: int64(capacity),
	}
	for i := range b.avail {
		b.avail[i].Store(-1)
	}
	return b, nil
}

// Capacity returns the buffer's fixed slot count.
func (b *Buffer[T]) Capacity() int { return int(b.capacity) }

// Len returns the number of elements currently observable (an upper bound
// under concurrent writers).
func (b *Buffer[T]) Len() int {
	n := b.writer.Load() - b.reader.Load()
	if n < 0 {
		return 0
	}
	if n > b.capacity {
		return int(b.capacity)
	}
	return int(n)
}

// DropCount returns the total number of elements evicted by overwrite.
func (b *Buffer[T]) DropCount() int64 { return b.dropped.Load() }

// PushedCount returns the total number of successful PushOverwrite calls.
func (b *Buffer[T]) PushedCount() int64 { return b.pushed.Load() }

// PushOverwrite inserts v, never blocking and never failing. Each producer
// claims a unique sequence number via CAS on the writer cursor; if the
// buffer is already full at that sequence, the producer cooperates with
// any concurrent producers to advance the reader cursor by exactly one
// (drop-oldest) via its own CAS, so no element is double-dropped.
func (b *Buffer[T]) PushOverwrite(v T) PushOutcome {
	var seq int64
	for {
		seq = b.writer.Load()
		if b.writer.CompareAndSwap(seq, seq+1) {
			break
		}
	}

	outcome := Accepted
	for {
		r := b.reader.Load()
		if seq-r < b.capacity {
			break
		}
		if b.reader.CompareAndSwap(r, r+1) {
			b.dropped.Add(1)
			outcome = Overwrote
		}
		// Loop back and re-check with the latest reader value, whether it
		// was this goroutine's own advance or a concurrent producer's: a
		// single advance is not always enough to satisfy seq-r < capacity,
		// and a lost CAS race must be retried against the new r.
	}

	idx := seq % b.capacity
	b.slots[idx] = v
	b.avail[idx].Store(seq + 1)
	b.pushed.Add(1)
	return outcome
}

// TakeSnapshot atomically claims every element currently between the
// reader and writer cursors, returns them in FIFO order, and leaves the
// buffer logically empty as of that linearisation point. Slots overwritten
// by a producer racing ahead of the claim (detected via sequence mismatch)
// are skipped rather than returned. Only the writer task may call this.
func (b *Buffer[T]) TakeSnapshot() []T {
	w := b.writer.Load()

	var oldest int64
	for {
		r := b.reader.Load()
		if r >= w {
			return nil
		}
		if b.reader.CompareAndSwap(r, w) {
			oldest = r
			break
		}
	}

	n := w - oldest
	if n > b.capacity {
		n = b.capacity
		oldest = w - n
	}

	out := make([]T, 0, n)
	for seq := oldest; seq < w; seq++ {
		idx := seq % b.capacity
		if b.avail[idx].Load() == seq+1 {
			out = append(out, b.slots[idx])
		}
	}
	return out
}
