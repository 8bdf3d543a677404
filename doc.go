// Package ttlog is an in-process structured logging engine built around a
// bounded, lock-free ring buffer and a crash-safe snapshot procedure.
//
// A producer call never blocks: Handle.Log builds a packed LogEvent,
// pushes it into a drop-oldest MPSC ring buffer, and hands it to a single
// writer task for listener dispatch. The writer task separately takes
// periodic (and on-demand) atomic snapshots of the ring buffer, encoding
// them as compressed CBOR and writing them atomically to disk — so that a
// panic, a fatal signal, or an explicit request always leaves behind a
// recent, self-contained window of events, independent of whatever the
// registered listeners managed to flush.
//
// Install the engine once with Init, log through the returned Handle (or
// its Debug/Info/Warn/Error helpers), and call Shutdown to flush listeners
// and take a final snapshot before exiting.
package ttlog
