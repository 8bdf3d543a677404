// hooks.go: signal-triggered snapshots and panic-recovery helper
//
// Go has no process-wide panic hook equivalent to a signal handler — a
// panic unwinds the goroutine stack it occurred on and only a deferred
// recover() in that same goroutine's call chain can intercept it. TTLog
// therefore exposes RecoverAndSnapshot as a helper callers defer at the top
// of any goroutine they want covered, rather than installing anything
// process-wide. Signal handling has a real Go equivalent: os/signal.Notify
// delivers SIGINT/SIGTERM/SIGQUIT onto a channel, which is itself the
// runtime's own self-pipe under the hood.
//
// Grounded on the teacher's graceful-shutdown signal handling convention
// (a buffered channel registered with signal.Notify, read by the same
// select loop that already owns the writer task).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"os"
	"os/signal"
	"syscall"
)

// installSignalForwarding registers SIGINT/SIGTERM/SIGQUIT and forwards
// each one as a short reason string onto signals. The os/signal
// registration is process-wide and is never unregistered — spec.md's
// signal hooks are meant to last the process lifetime once installed.
func installSignalForwarding(signals chan<- string) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		for sig := range ch {
			reason := sig.String()
			select {
			case signals <- reason:
			default:
				// A signal arriving while a previous one is still queued is
				// dropped rather than blocking the OS signal delivery path.
			}
		}
	}()
}

// RecoverAndSnapshot is deferred at the top of a goroutine to request a
// best-effort snapshot before a panic finishes unwinding that goroutine.
// It re-panics after requesting the snapshot so normal crash behavior
// (a nonzero exit, a stack trace on stderr) is unaffected — this only adds
// a snapshot attempt in front of it. The snapshot itself is always taken on
// the writer task, never on the recovering goroutine, so it cannot race the
// writer's own periodic or signal-triggered snapshot I/O.
//
// If the Handle was configured with InstallPanicHook false, the snapshot
// request is skipped entirely and RecoverAndSnapshot only re-panics.
//
// SIGSEGV and other fatal runtime errors that terminate the process
// without unwinding Go stacks (e.g. a nil pointer dereference inside
// cgo, or out-of-memory) cannot be intercepted this way; only Go-level
// panics recovered via a deferred call in the same goroutine are covered.
func (h *Handle) RecoverAndSnapshot() {
	if r := recover(); r != nil {
		if h.config.InstallPanicHook {
			h.RequestSnapshot("panic")
		}
		panic(r)
	}
}
