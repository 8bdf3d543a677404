// pool.go: reusable byte buffers for snapshot encoding
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package bufferpool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool statistics for monitoring and debugging.
var (
	getCount   int64
	putCount   int64
	allocCount int64
	dropCount  int64
)

const (
	// MaxBufferSize is the maximum buffer capacity kept in the pool.
	// Buffers that grew past this (a snapshot with an unusually large
	// event count) are discarded instead of retained.
	MaxBufferSize = 1 << 20 // 1 MiB

	// DefaultCapacity is the initial capacity hint for new buffers, sized
	// for a typical CBOR-encoded snapshot scratch buffer.
	DefaultCapacity = 4096
)

var pool = sync.Pool{
	New: func() any {
		atomic.AddInt64(&allocCount, 1)
		return bytes.NewBuffer(make([]byte, 0, DefaultCapacity))
	},
}

// Get returns a clean *bytes.Buffer from the pool, ready for immediate use.
func Get() *bytes.Buffer {
	atomic.AddInt64(&getCount, 1)
	b := pool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// Put returns b to the pool. Buffers that grew past MaxBufferSize are
// replaced rather than retained, so one oversized snapshot can't pin a
// large allocation in the pool indefinitely.
func Put(b *bytes.Buffer) {
	if b == nil {
		return
	}
	atomic.AddInt64(&putCount, 1)

	if b.Cap() > MaxBufferSize {
		atomic.AddInt64(&dropCount, 1)
		*b = *bytes.NewBuffer(make([]byte, 0, DefaultCapacity))
	}

	b.Reset()
	pool.Put(b)
}

// Stats is a snapshot of pool usage counters.
type Stats struct {
	Gets        int64
	Puts        int64
	Allocations int64
	Drops       int64
}

// GetStats returns current pool statistics.
func GetStats() Stats {
	return Stats{
		Gets:        atomic.LoadInt64(&getCount),
		Puts:        atomic.LoadInt64(&putCount),
		Allocations: atomic.LoadInt64(&allocCount),
		Drops:       atomic.LoadInt64(&dropCount),
	}
}

// ResetStats zeroes every counter. Intended for test isolation.
func ResetStats() {
	atomic.StoreInt64(&getCount, 0)
	atomic.StoreInt64(&putCount, 0)
	atomic.StoreInt64(&allocCount, 0)
	atomic.StoreInt64(&dropCount, 0)
}
