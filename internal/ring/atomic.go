// atomic.go: cache-line padded atomic counters for the ring buffer
//
// Adapted from the teacher's embedded Zephyros Light atomic primitives,
// kept essentially unchanged: essential operations only (Load, Store, Add,
// CompareAndSwap), standard 64-byte padding to prevent false sharing
// between the writer and reader cursors.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ring

import "sync/atomic"

// PaddedInt64 is an int64 padded on both sides to a full cache line so that
// independently-hammered counters (writer cursor, reader cursor, drop
// count) never false-share a line.
type PaddedInt64 struct {
	_   [64]byte
	val int64
	_   [64]byte
}

// Load atomically reads the value.
func (a *PaddedInt64) Load() int64 { return atomic.LoadInt64(&a.val) }

// Store atomically writes the value.
func (a *PaddedInt64) Store(v int64) { atomic.StoreInt64(&a.val, v) }

// Add atomically adds delta and returns the new value.
func (a *PaddedInt64) Add(delta int64) int64 { return atomic.AddInt64(&a.val, delta) }

// CompareAndSwap atomically swaps old for new, returning whether it happened.
func (a *PaddedInt64) CompareAndSwap(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&a.val, old, new)
}
