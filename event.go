// event.go: packed log event record and its builder
//
// Grounded on the teacher's encoder-json.go Record type (a fixed-size
// field array to avoid heap allocation) and binary_caller.go's lazy
// caller computation, generalized to spec's K=3 inline fields and packed
// 64-bit metadata word.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"github.com/agilira/go-timecache"
)

// K is the maximum number of inline structured fields a LogEvent carries.
// A 4th and later field passed to Log is dropped silently and counted.
const K = 3

// PackedMeta is a 64-bit word holding a LogEvent's timestamp, level and
// producing-thread id. Layout (Open Question resolved, see DESIGN.md):
//
//	bits 63..16: nanosecond timestamp (48 bits, low bits of the clock reading)
//	bits 15..3:  thread id (13 bits)
//	bits 2..0:   level (3 bits)
//
// timestamp<<16 | (threadID&0x1FFF)<<3 | (level&0x7)
type PackedMeta uint64

const (
	metaLevelBits     = 3
	metaLevelMask     = (1 << metaLevelBits) - 1
	metaThreadIDBits  = 13
	metaThreadIDShift = metaLevelBits
	metaThreadIDMask  = (1 << metaThreadIDBits) - 1
	metaTimestampShift = metaLevelBits + metaThreadIDBits
)

// packMeta assembles a PackedMeta from its three components. Lossy
// truncation of the timestamp to 48 bits and the thread id to 13 bits is
// intentional and documented; round-tripping through Unpack recovers
// exactly these truncated values.
func packMeta(timestampNanos int64, level Level, threadID uint16) PackedMeta {
	t := uint64(timestampNanos) << metaTimestampShift
	th := uint64(threadID&metaThreadIDMask) << metaThreadIDShift
	lv := uint64(int32(level)) & metaLevelMask
	return PackedMeta(t | th | lv)
}

// Unpack decomposes a PackedMeta back into its timestamp, level and thread
// id components. Level occupies only the low 3 bits, so the raw field is
// sign-extended back to a full-width int32 before conversion to Level —
// otherwise a negative Level such as Debug (-1, stored as 0b111) would read
// back as 7 instead of -1.
func (m PackedMeta) Unpack() (timestampNanos int64, level Level, threadID uint16) {
	raw := uint64(m)
	timestampNanos = int64(raw >> metaTimestampShift)
	threadID = uint16((raw >> metaThreadIDShift) & metaThreadIDMask)
	const signBit = 1 << (metaLevelBits - 1)
	lv := int32(raw & metaLevelMask)
	if lv&signBit != 0 {
		lv -= 1 << metaLevelBits
	}
	level = Level(lv)
	return
}

// eventField is one inline (key-handle, typed-value) pair stored directly
// in a LogEvent. String values are interned and stored as a handle into
// the field-key namespace, not as raw bytes.
type eventField struct {
	keyHandle uint16
	kind      kind
	i64       int64
	u64       uint64
	f64       float64
	strHandle uint16
	// str holds the literal string value for a field decoded from a
	// snapshot. Snapshot encoding embeds field string values literally
	// (spec.md §6), not as a handle, so a decoded event has no live
	// Interner to resolve strHandle against; live (non-decoded) events
	// always leave str empty and carry a nonzero strHandle instead.
	str string
}

// LogEvent is the fixed-shape record produced by every Log call: a packed
// metadata word, interned target/message handles, a source position, and
// up to K inline structured fields.
type LogEvent struct {
	Meta PackedMeta

	TargetID  uint16
	MessageID uint16
	KVID      uint16 // reserved; always 0 in this implementation

	FileID uint16
	Line   uint32
	Column uint32

	Fields    [K]eventField
	NumFields uint8

	// FieldsDropped counts fields supplied beyond K that were silently
	// discarded, per spec.md §3.
	FieldsDropped uint8
}

// buildEvent constructs a LogEvent from raw producer inputs. It interns
// target/message/field-key strings, coerces field values into the typed
// union, and packs the metadata word. The caller is responsible for the
// level.Enabled(min) check — buildEvent does no filtering itself so that
// the filtered-out fast path never reaches here at all.
func buildEvent(in *Interner, level Level, target, message string, fileID uint16, line, column uint32, threadID uint16, fields []Field) LogEvent {
	now := timecache.CachedTime().UnixNano()

	ev := LogEvent{
		Meta:      packMeta(now, level, threadID),
		TargetID:  in.InternTarget(target),
		MessageID: in.InternMessage(message),
		FileID:    fileID,
		Line:      line,
		Column:    column,
	}

	n := len(fields)
	if n > K {
		ev.FieldsDropped = uint8(n - K)
		n = K
	}
	for i := 0; i < n; i++ {
		ev.Fields[i] = internField(in, fields[i])
	}
	ev.NumFields = uint8(n)
	return ev
}

// internField converts a public Field into its wire-ready eventField,
// interning the key and, for string values, the value itself.
func internField(in *Interner, f Field) eventField {
	ef := eventField{
		keyHandle: in.InternFieldKey(f.K),
		kind:      f.T,
		i64:       f.I64,
		u64:       f.U64,
		f64:       f.F64,
	}
	if f.T == kindString {
		ef.strHandle = in.InternFieldKey(f.Str)
	}
	return ef
}
