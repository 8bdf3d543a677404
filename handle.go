// handle.go: process-wide engine handle and its public producer API
//
// Grounded on the teacher's root-level Logger handle (a struct bundling
// the ring buffer, encoder and writer goroutine behind a small public
// surface) and its Init/global-singleton convention for process-wide
// logging. safeCall/newEngineError come from errors.go.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/ttlog/internal/ring"
)

// Handle is the engine's process-wide entry point: every Log call, listener
// registration, and snapshot request goes through one. Obtain it via Init.
type Handle struct {
	config Config

	ring     *ring.Buffer[LogEvent]
	interner *Interner
	level    *AtomicLevel
	listeners *listenerRegistry

	control chan controlMessage
	signals chan string

	callCounter uint32

	// dispatchDrops counts events that reached the ring buffer but whose
	// live listener dispatch was skipped because the control channel was
	// full (see Log).
	dispatchDrops uint64

	wg sync.WaitGroup

	shutdownOnce sync.Once
}

var (
	globalMu sync.Mutex
	global   *Handle
)

// Init installs the process-wide Handle. Any later call returns the
// already-installed Handle together with an ErrCodeInitAlreadyInstalled
// error instead of replacing the existing engine; Shutdown does not
// uninstall the global Handle.
func Init(cfg Config) (*Handle, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return global, newEngineError(ErrCodeInitAlreadyInstalled, "ttlog is already initialized")
	}

	h, err := newHandle(cfg)
	if err != nil {
		return nil, err
	}
	global = h
	return h, nil
}

// Get returns the process-wide Handle installed by Init, or nil if none is
// installed.
func Get() *Handle {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// newHandle builds and starts a Handle without touching the global
// singleton; used by Init and directly by tests that want an isolated
// engine instance.
func newHandle(cfg Config) (*Handle, error) {
	cfg = cfg.WithDefaults().ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buf, err := ring.New[LogEvent](cfg.Capacity)
	if err != nil {
		return nil, wrapEngineError(err, ErrCodeInvalidConfig, "failed to create ring buffer")
	}

	h := &Handle{
		config:    cfg,
		ring:      buf,
		interner:  NewInterner(),
		level:     NewAtomicLevel(cfg.MinLevel),
		listeners: newListenerRegistry(),
		control:   make(chan controlMessage, cfg.ChannelCapacity),
		signals:   make(chan string, 4),
	}

	if cfg.InstallSignalHooks {
		installSignalForwarding(h.signals)
	}

	h.wg.Add(1)
	go h.writerLoop()

	return h, nil
}

func (h *Handle) newTicker() *time.Ticker {
	interval := h.config.PeriodicInterval
	if interval <= 0 {
		interval = DefaultPeriodicInterval
	}
	return time.NewTicker(interval)
}

// SetLevel changes the minimum level future Log calls are filtered against.
// Safe to call concurrently with Log.
func (h *Handle) SetLevel(level Level) { h.level.SetLevel(level) }

// GetLevel returns the current minimum level.
func (h *Handle) GetLevel() Level { return h.level.Level() }

// AddListener registers l for live event dispatch, returning an id usable
// with RemoveListener.
func (h *Handle) AddListener(l Listener) uint64 { return h.listeners.add(l) }

// RemoveListener unregisters the listener id returned by AddListener. It
// reports whether a listener with that id was found.
func (h *Handle) RemoveListener(id uint64) bool { return h.listeners.remove(id) }

// DispatchDropCount returns the number of events whose live listener
// dispatch was skipped due to control channel backpressure. These events
// are still present in the ring buffer and any subsequent snapshot.
func (h *Handle) DispatchDropCount() uint64 { return atomic.LoadUint64(&h.dispatchDrops) }

// RequestSnapshot asks the writer task to take and persist a snapshot out
// of its normal periodic cycle, tagging the resulting file with reason.
// Non-blocking: if the control channel is momentarily full the request is
// dropped and reported through the error handler rather than blocking the
// caller.
func (h *Handle) RequestSnapshot(reason string) {
	msg := controlMessage{kind: msgSnapshotImmediate, reason: reason}
	select {
	case h.control <- msg:
	default:
		handleError(newEngineError(ErrCodeChannelOverflow, "control channel full, snapshot request dropped: "+reason))
	}
}

// Shutdown asks the writer task to flush every listener, take a final
// snapshot, and stop, waiting up to timeout for it to finish. If the
// deadline elapses first it returns ErrCodeShutdownTimeout and leaves the
// writer task to finish in the background.
func (h *Handle) Shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	msg := controlMessage{kind: msgFlushAndExit, done: done}

	var sendErr error
	h.shutdownOnce.Do(func() {
		h.control <- msg
	})
	if sendErr != nil {
		return sendErr
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		return newEngineError(ErrCodeShutdownTimeout, "writer task did not finish within timeout")
	}
}

// Log is the hot-path entry point every level-specific helper funnels
// through. It checks the level filter before doing any other work so a
// filtered-out call costs one atomic load.
func (h *Handle) Log(level Level, target, message string, fields ...Field) {
	if !h.level.Enabled(level) {
		return
	}

	// The thread-id bits of the event's PackedMeta carry the low 13 bits of
	// a per-Handle call counter; the value does not identify the producing
	// goroutine or OS thread.
	threadID := uint16(atomic.AddUint32(&h.callCounter, 1) & metaThreadIDMask)

	fileID, line := h.captureCaller()
	ev := buildEvent(h.interner, level, target, message, fileID, line, 0, threadID, fields)

	h.ring.PushOverwrite(ev)

	msg := controlMessage{kind: msgEvent, event: ev}
	select {
	case h.control <- msg:
	default:
		// Listener dispatch happens exclusively on the writer task. When the
		// control channel is full, the event was still captured in the ring
		// buffer (and will surface in the next snapshot) but live dispatch
		// for it is skipped rather than run inline on the producer, which
		// would block the calling goroutine on a slow Listener.Handle at
		// precisely the worst moment.
		atomic.AddUint64(&h.dispatchDrops, 1)
		handleError(newEngineError(ErrCodeChannelOverflow, "control channel full, listener dispatch skipped"))
	}
}

// captureCaller resolves the immediate caller's file (interned into the
// field-key namespace, the same substitution used for field string values)
// and line. Go's runtime does not expose a column for a caller frame, so
// column is always reported as 0 by the caller of this helper.
func (h *Handle) captureCaller() (fileID uint16, line uint32) {
	_, file, ln, ok := runtime.Caller(2)
	if !ok {
		return handleNone, 0
	}
	return h.interner.InternFieldKey(file), uint32(ln)
}

// Debug logs at Debug level.
func (h *Handle) Debug(target, message string, fields ...Field) { h.Log(Debug, target, message, fields...) }

// Info logs at Info level.
func (h *Handle) Info(target, message string, fields ...Field) { h.Log(Info, target, message, fields...) }

// Warn logs at Warn level.
func (h *Handle) Warn(target, message string, fields ...Field) { h.Log(Warn, target, message, fields...) }

// Error logs at Error level.
func (h *Handle) Error(target, message string, fields ...Field) { h.Log(Error, target, message, fields...) }
