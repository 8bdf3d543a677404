// intern.go: deduplicating string interner for targets, messages and field keys
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"hash/fnv"
	"sync"
)

const (
	// handleOverflow is the sentinel handle returned once a namespace has
	// assigned every handle in its 16-bit space. It always resolves to
	// overflowLiteral.
	handleOverflow uint16 = 0xFFFF
	// handleNone marks an absent target/message/field-key reference (the
	// zero handle is never assigned to a real string).
	handleNone uint16 = 0

	overflowLiteral = "<intern-overflow>"

	// internShardCount is the fixed stripe count each namespace's shared
	// table is split into. Spec.md §9 explicitly allows substituting a
	// sharded table with a fast hash for languages without cheap
	// thread-locals; Go is such a language.
	internShardCount = 32
)

// internShard is one reader-biased stripe of a namespace's shared table.
type internShard struct {
	mu     sync.RWMutex
	toID   map[string]uint16
	toName []string // this shard's strings in insertion order (not indexed by handle)
}

// namespace is one of the interner's three independent handle spaces
// (targets, messages, field keys).
type namespace struct {
	shards [internShardCount]internShard
	// next is a global monotonic counter so handles are never reused and
	// stay unique across shards; it is only touched under a shard's write
	// lock combined with this namespace's allocMu to keep allocation atomic.
	allocMu sync.Mutex
	next    uint32
}

func newNamespace() *namespace {
	ns := &namespace{next: 1}
	for i := range ns.shards {
		ns.shards[i].toID = make(map[string]uint16)
	}
	return ns
}

func shardFor(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32() % internShardCount
}

// intern resolves s to a stable handle, inserting it on first sight. It is
// wait-free on the cache-hit path (a single RLock over one shard) and
// never panics; once the namespace's 16-bit space is exhausted it returns
// handleOverflow forever after.
func (ns *namespace) intern(s string) uint16 {
	shard := &ns.shards[shardFor(s)]

	shard.mu.RLock()
	if id, ok := shard.toID[s]; ok {
		shard.mu.RUnlock()
		return id
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Re-check under the write lock: another goroutine may have inserted
	// this string while we waited.
	if id, ok := shard.toID[s]; ok {
		return id
	}

	ns.allocMu.Lock()
	id := ns.next
	if id >= uint32(handleOverflow) {
		ns.allocMu.Unlock()
		return handleOverflow
	}
	ns.next++
	ns.allocMu.Unlock()

	handle := uint16(id)
	shard.toID[s] = handle
	shard.toName = append(shard.toName, s)
	return handle
}

// resolve returns the string a handle was assigned to. Only ever called off
// the producer path (snapshot encode/decode), so a full shard scan under
// read lock is acceptable.
func (ns *namespace) resolve(handle uint16) string {
	if handle == handleNone {
		return ""
	}
	if handle == handleOverflow {
		return overflowLiteral
	}
	for i := range ns.shards {
		shard := &ns.shards[i]
		shard.mu.RLock()
		for s, id := range shard.toID {
			if id == handle {
				shard.mu.RUnlock()
				return s
			}
		}
		shard.mu.RUnlock()
	}
	return overflowLiteral
}

// exportOrdered returns every interned string ordered by ascending handle,
// suitable for embedding as a snapshot's handle table (index i corresponds
// to handle i+1).
func (ns *namespace) exportOrdered() []string {
	type pair struct {
		id uint16
		s  string
	}
	var all []pair
	for i := range ns.shards {
		shard := &ns.shards[i]
		shard.mu.RLock()
		for s, id := range shard.toID {
			all = append(all, pair{id, s})
		}
		shard.mu.RUnlock()
	}
	if len(all) == 0 {
		return nil
	}
	maxID := uint16(0)
	for _, p := range all {
		if p.id > maxID {
			maxID = p.id
		}
	}
	out := make([]string, maxID)
	for _, p := range all {
		out[p.id-1] = p.s
	}
	return out
}

// Interner owns the three independent handle namespaces spec.md §4.1
// requires: targets, messages and field keys. Field string *values* are
// interned into the field-key namespace as well (see DESIGN.md's Open
// Question decision) rather than getting a fourth table.
type Interner struct {
	targets   *namespace
	messages  *namespace
	fieldKeys *namespace
}

// NewInterner creates an empty Interner. It lives for the process lifetime
// once installed on a Handle.
func NewInterner() *Interner {
	return &Interner{
		targets:   newNamespace(),
		messages:  newNamespace(),
		fieldKeys: newNamespace(),
	}
}

// InternTarget resolves s to a stable target handle. An empty string
// resolves to handleNone without consuming a slot.
func (in *Interner) InternTarget(s string) uint16 {
	if s == "" {
		return handleNone
	}
	return in.targets.intern(s)
}

// InternMessage resolves s to a stable message handle.
func (in *Interner) InternMessage(s string) uint16 {
	if s == "" {
		return handleNone
	}
	return in.messages.intern(s)
}

// InternFieldKey resolves s to a stable field-key handle. Also used for
// interning string-typed field *values* (see Open Question decision).
func (in *Interner) InternFieldKey(s string) uint16 {
	return in.fieldKeys.intern(s)
}

// ResolveTarget returns the string behind a target handle.
func (in *Interner) ResolveTarget(h uint16) string { return in.targets.resolve(h) }

// ResolveMessage returns the string behind a message handle.
func (in *Interner) ResolveMessage(h uint16) string { return in.messages.resolve(h) }

// ResolveFieldKey returns the string behind a field-key (or field-value)
// handle.
func (in *Interner) ResolveFieldKey(h uint16) string { return in.fieldKeys.resolve(h) }

// SerialisableTables is the subset of interner state a snapshot embeds so
// that decoding never requires external state (spec.md §3).
type SerialisableTables struct {
	Targets   []string
	Messages  []string
	FieldKeys []string
}

// ExportTables returns a self-contained copy of every namespace's handle
// table, ordered by ascending handle. Used only by the snapshot encoder.
func (in *Interner) ExportTables() SerialisableTables {
	return SerialisableTables{
		Targets:   in.targets.exportOrdered(),
		Messages:  in.messages.exportOrdered(),
		FieldKeys: in.fieldKeys.exportOrdered(),
	}
}
