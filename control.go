// control.go: writer-task control channel and its message union
//
// Grounded on the teacher's writer-goroutine pattern (a single goroutine
// owns all dispatch and snapshot I/O, reached only through channels),
// generalized from a plain []byte/Record channel to a tagged union so one
// channel can carry both live events and out-of-band control requests.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

// messageKind tags which variant of controlMessage is populated.
type messageKind uint8

const (
	// msgEvent carries a LogEvent through to asynchronous listener dispatch.
	// The event has already been written into the ring buffer by the
	// producer; this copy only ever reaches listeners, never storage.
	msgEvent messageKind = iota
	// msgSnapshotImmediate requests an out-of-cycle snapshot.
	msgSnapshotImmediate
	// msgFlushAndExit requests final listener flush, a last snapshot, and
	// writer task shutdown. done is closed once complete.
	msgFlushAndExit
)

// controlMessage is the single type flowing through a Handle's control
// channel. Exactly one field group is meaningful, selected by kind.
type controlMessage struct {
	kind messageKind

	event LogEvent

	reason string

	done chan struct{}
}

// writerLoop is the writer task body: a single goroutine multiplexing the
// control channel, the periodic snapshot ticker, and (if installed) the
// signal channel. It is the only goroutine permitted to call
// ring.Buffer.TakeSnapshot or write a snapshot file.
func (h *Handle) writerLoop() {
	defer h.wg.Done()

	ticker := h.newTicker()
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-h.control:
			if !ok {
				return
			}
			if h.handleMessage(msg) {
				return
			}

		case <-ticker.C:
			h.takeAndWriteSnapshot("periodic")

		case sig := <-h.signals:
			h.takeAndWriteSnapshot("signal:" + sig)
		}
	}
}

// handleMessage applies one controlMessage. It returns true once the
// writer task should stop (msgFlushAndExit).
func (h *Handle) handleMessage(msg controlMessage) bool {
	switch msg.kind {
	case msgEvent:
		h.listeners.dispatch(msg.event, h.interner)
		return false

	case msgSnapshotImmediate:
		h.takeAndWriteSnapshot(msg.reason)
		return false

	case msgFlushAndExit:
		h.listeners.flushAll()
		h.takeAndWriteSnapshot("shutdown")
		if msg.done != nil {
			close(msg.done)
		}
		return true

	default:
		return false
	}
}
