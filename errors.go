// errors.go: error taxonomy and handler integration for TTLog
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/agilira/go-errors"
)

// Error codes, matching spec.md §7's error taxonomy plus the handful of
// encode/decode/config codes the rest of the engine needs.
const (
	// ErrCodeDropped marks an event evicted from the ring buffer on overwrite.
	ErrCodeDropped errors.ErrorCode = "TTLOG_DROPPED"
	// ErrCodeChannelOverflow marks a control-channel-full fallback to the
	// direct ring-buffer push path.
	ErrCodeChannelOverflow errors.ErrorCode = "TTLOG_CHANNEL_OVERFLOW"
	// ErrCodeInternOverflow marks a namespace that exceeded its 16-bit handle
	// space; the overflow sentinel was used instead.
	ErrCodeInternOverflow errors.ErrorCode = "TTLOG_INTERN_OVERFLOW"
	// ErrCodeListenerFailure marks a listener that panicked or returned an
	// error and has been disabled.
	ErrCodeListenerFailure errors.ErrorCode = "TTLOG_LISTENER_FAILURE"
	// ErrCodeIoError marks an I/O failure while writing a snapshot.
	ErrCodeIoError errors.ErrorCode = "TTLOG_IO_ERROR"
	// ErrCodeInitAlreadyInstalled marks a second Init call.
	ErrCodeInitAlreadyInstalled errors.ErrorCode = "TTLOG_INIT_ALREADY_INSTALLED"
	// ErrCodeShutdownTimeout marks a writer-task join that exceeded its
	// deadline; the writer was detached instead of waited on.
	ErrCodeShutdownTimeout errors.ErrorCode = "TTLOG_SHUTDOWN_TIMEOUT"

	// ErrCodeInvalidConfig marks a rejected Config value.
	ErrCodeInvalidConfig errors.ErrorCode = "TTLOG_INVALID_CONFIG"
	// ErrCodeEncodingFailed marks a snapshot CBOR/LZ4 encode failure.
	ErrCodeEncodingFailed errors.ErrorCode = "TTLOG_ENCODING_FAILED"
	// ErrCodeDecodeError marks a snapshot that failed to decode.
	ErrCodeDecodeError errors.ErrorCode = "TTLOG_DECODE_ERROR"
	// ErrCodeFileOpen marks a failure to open or create a snapshot file.
	ErrCodeFileOpen errors.ErrorCode = "TTLOG_FILE_OPEN"
	// ErrCodeFileWrite marks a failure while writing or renaming a snapshot
	// file.
	ErrCodeFileWrite errors.ErrorCode = "TTLOG_FILE_WRITE"
	// ErrCodeExecution marks a recovered panic inside engine-internal code.
	ErrCodeExecution errors.ErrorCode = "TTLOG_EXECUTION"
)

// ErrorHandler processes an error produced by the engine. It is called from
// the writer task, from configuration loading and watching, and from
// RequestSnapshot when the control channel is full; never from a hot-path
// Log call.
type ErrorHandler func(err *errors.Error)

// defaultErrorHandler writes a one-line structured record to stderr.
var defaultErrorHandler ErrorHandler = func(err *errors.Error) {
	fmt.Fprintf(os.Stderr, "[TTLOG ERROR] %s: %s\n", err.Code, err.Message)
	if err.Cause != nil {
		fmt.Fprintf(os.Stderr, "[TTLOG ERROR] caused by: %v\n", err.Cause)
	}
}

var currentErrorHandler = defaultErrorHandler

// SetErrorHandler overrides how the engine reports its own errors. Passing
// nil restores the default stderr handler.
func SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		currentErrorHandler = defaultErrorHandler
		return
	}
	currentErrorHandler = handler
}

// GetErrorHandler returns the currently installed error handler.
func GetErrorHandler() ErrorHandler {
	return currentErrorHandler
}

// handleError adds runtime context and dispatches err to the current
// handler. Never called with a nil error.
func handleError(err *errors.Error) {
	if err == nil {
		return
	}
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context["go_version"] = runtime.Version()
	currentErrorHandler(err)
}

// newEngineError creates an error with standard engine context and caller
// information.
func newEngineError(code errors.ErrorCode, message string) *errors.Error {
	err := errors.New(code, message).
		WithSeverity("error").
		WithContext("component", "ttlog").
		WithContext("timestamp", time.Now().UTC())

	if pc, file, line, ok := runtime.Caller(2); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			_ = err.WithContext("caller_func", fn.Name())
		}
		_ = err.WithContext("caller_file", file)
		_ = err.WithContext("caller_line", line)
	}
	return err
}

// wrapEngineError wraps an existing error with engine context.
func wrapEngineError(cause error, code errors.ErrorCode, message string) *errors.Error {
	err := errors.Wrap(cause, code, message).
		WithSeverity("error").
		WithContext("component", "ttlog").
		WithContext("timestamp", time.Now().UTC())
	return err
}

// recoverWithError recovers from a panic in progress and converts it into a
// structured engine error carrying a captured stack trace. Returns nil if
// no panic is in flight.
func recoverWithError(code errors.ErrorCode) *errors.Error {
	if r := recover(); r != nil {
		err := newEngineError(code, fmt.Sprintf("panic recovered: %v", r))
		_ = err.WithContext("panic_value", r)

		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		_ = err.WithContext("panic_stack", string(buf[:n]))
		return err
	}
	return nil
}

// safeCall runs fn, recovering and reporting any panic through handleError
// instead of letting it propagate. An error returned by fn is reported
// through handleError too, but only a panic makes safeCall return true.
// Used to isolate listener dispatch
// (spec.md §4.5: "a failing listener must not abort the loop").
func safeCall(fn func() error, operation string) (panicked bool) {
	defer func() {
		if err := recoverWithError(ErrCodeListenerFailure); err != nil {
			_ = err.WithContext("operation", operation)
			handleError(err)
			panicked = true
		}
	}()
	if err := fn(); err != nil {
		e := newEngineError(ErrCodeListenerFailure, err.Error())
		_ = e.WithContext("operation", operation)
		handleError(e)
		return false
	}
	return false
}

// validateErrorCodes ensures every error code above follows the TTLOG_
// naming convention. Runs once at package init, panicking on violation so a
// mistyped constant is caught immediately rather than at first use.
func validateErrorCodes() {
	codes := []errors.ErrorCode{
		ErrCodeDropped, ErrCodeChannelOverflow, ErrCodeInternOverflow,
		ErrCodeListenerFailure, ErrCodeIoError, ErrCodeInitAlreadyInstalled,
		ErrCodeShutdownTimeout, ErrCodeInvalidConfig, ErrCodeEncodingFailed,
		ErrCodeDecodeError, ErrCodeFileOpen, ErrCodeFileWrite, ErrCodeExecution,
	}
	for _, code := range codes {
		s := string(code)
		if len(s) < 6 || s[:6] != "TTLOG_" {
			panic(fmt.Sprintf("error code %s does not follow TTLOG_ prefix convention", code))
		}
	}
}

func init() {
	validateErrorCodes()
}
