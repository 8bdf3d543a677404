// snapshot.go: crash-safe snapshot encoder and atomic file writer
//
// Grounded on the teacher's FileWriteSyncer (sink.go) for the underlying
// file I/O posture and on its general "encode then write, never partially
// visible" discipline; CBOR/LZ4 are new to this engine (the teacher has no
// binary snapshot format) and are wired in per SPEC_FULL.md's domain stack.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agilira/ttlog/internal/bufferpool"
	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
)

// Snapshot is the decoded, self-contained contents of a ring buffer at a
// linearisation point, plus enough interner state to resolve every handle
// it references without external state.
type Snapshot struct {
	Service   string
	Hostname  string
	PID       int
	CreatedAt time.Time
	Reason    string
	Tables    SerialisableTables
	Events    []LogEvent
}

// wireField is the 2-element [key_id, value] array the format specifies.
// value's own CBOR major type (bool / uint / negative-int / float / text)
// identifies its subtype; exact bit-width (int8 vs int32, float32 vs
// float64) is not preserved across encode/decode, only the value and the
// coarser kind category.
type wireField [2]interface{}

// wireEvent mirrors spec.md §6's fixed-order array:
// [packed_meta, target_id, message_id_or_null, kv_id_or_null, file_id,
// line, column, fields].
type wireEvent struct {
	_          struct{} `cbor:",toarray"`
	PackedMeta uint64
	TargetID   uint16
	MessageID  *uint16
	KVID       *uint16
	FileID     uint16
	Line       uint32
	Column     uint32
	Fields     []wireField
}

type wireInterner struct {
	Targets   []string `cbor:"targets"`
	Messages  []string `cbor:"messages"`
	FieldKeys []string `cbor:"field_keys"`
}

// wireSnapshot is the CBOR map with exactly the top-level keys spec.md §6
// requires.
type wireSnapshot struct {
	Service   string       `cbor:"service"`
	Hostname  string       `cbor:"hostname"`
	PID       uint64       `cbor:"pid"`
	CreatedAt string       `cbor:"created_at"`
	Reason    string       `cbor:"reason"`
	Interner  wireInterner `cbor:"interner"`
	Events    []wireEvent  `cbor:"events"`
}

func handleOrNil(h uint16) *uint16 {
	if h == handleNone {
		return nil
	}
	v := h
	return &v
}

func handleFromPtr(p *uint16) uint16 {
	if p == nil {
		return handleNone
	}
	return *p
}

// resolveFromTable resolves a handle against an exported interner table
// (index i holds the string for handle i+1), used to embed field string
// values literally in the wire format without needing a live Interner.
func resolveFromTable(table []string, handle uint16) string {
	if handle == handleNone {
		return ""
	}
	idx := int(handle) - 1
	if idx < 0 || idx >= len(table) {
		return overflowLiteral
	}
	return table[idx]
}

func fieldValueToWire(f eventField, fieldKeyTable []string) interface{} {
	switch f.kind {
	case kindBool:
		return f.i64 != 0
	case kindInt8, kindInt16, kindInt32, kindInt64:
		return f.i64
	case kindUint8, kindUint16, kindUint32, kindUint64:
		return f.u64
	case kindFloat32, kindFloat64:
		return f.f64
	case kindString:
		return resolveFromTable(fieldKeyTable, f.strHandle)
	default:
		return nil
	}
}

func wireValueToField(key uint16, v interface{}) eventField {
	ef := eventField{keyHandle: key}
	switch val := v.(type) {
	case bool:
		ef.kind = kindBool
		if val {
			ef.i64 = 1
		}
	case int64:
		ef.kind = kindInt64
		ef.i64 = val
	case uint64:
		ef.kind = kindUint64
		ef.u64 = val
	case float64:
		ef.kind = kindFloat64
		ef.f64 = val
	case string:
		ef.kind = kindString
		ef.str = val
	}
	return ef
}

func eventToWire(ev LogEvent, fieldKeyTable []string) wireEvent {
	fields := make([]wireField, ev.NumFields)
	for i := 0; i < int(ev.NumFields); i++ {
		f := ev.Fields[i]
		fields[i] = wireField{f.keyHandle, fieldValueToWire(f, fieldKeyTable)}
	}
	return wireEvent{
		PackedMeta: uint64(ev.Meta),
		TargetID:   ev.TargetID,
		MessageID:  handleOrNil(ev.MessageID),
		KVID:       handleOrNil(ev.KVID),
		FileID:     ev.FileID,
		Line:       ev.Line,
		Column:     ev.Column,
		Fields:     fields,
	}
}

func wireToEvent(w wireEvent) LogEvent {
	ev := LogEvent{
		Meta:      PackedMeta(w.PackedMeta),
		TargetID:  w.TargetID,
		MessageID: handleFromPtr(w.MessageID),
		KVID:      handleFromPtr(w.KVID),
		FileID:    w.FileID,
		Line:      w.Line,
		Column:    w.Column,
	}
	n := len(w.Fields)
	if n > K {
		n = K
	}
	for i := 0; i < n; i++ {
		key, _ := w.Fields[i][0].(uint64)
		ev.Fields[i] = wireValueToField(uint16(key), w.Fields[i][1])
	}
	ev.NumFields = uint8(n)
	return ev
}

func buildSnapshotRecord(serviceName, reason string, events []LogEvent, in *Interner) Snapshot {
	hostname, _ := os.Hostname()
	return Snapshot{
		Service:   serviceName,
		Hostname:  hostname,
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC(),
		Reason:    reason,
		Tables:    in.ExportTables(),
		Events:    events,
	}
}

// EncodeSnapshot serialises snap to CBOR and compresses the result with
// LZ4 block mode, returning a self-contained byte stream.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	events := make([]wireEvent, len(snap.Events))
	for i, ev := range snap.Events {
		events[i] = eventToWire(ev, snap.Tables.FieldKeys)
	}

	ws := wireSnapshot{
		Service:   snap.Service,
		Hostname:  snap.Hostname,
		PID:       uint64(snap.PID),
		CreatedAt: snap.CreatedAt.Format(time.RFC3339Nano),
		Reason:    snap.Reason,
		Interner: wireInterner{
			Targets:   snap.Tables.Targets,
			Messages:  snap.Tables.Messages,
			FieldKeys: snap.Tables.FieldKeys,
		},
		Events: events,
	}

	scratch := bufferpool.Get()
	defer bufferpool.Put(scratch)

	if err := cbor.NewEncoder(scratch).Encode(ws); err != nil {
		return nil, wrapEngineError(err, ErrCodeEncodingFailed, "cbor encode failed")
	}
	raw := scratch.Bytes()

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(raw, compressed)
	if err != nil {
		return nil, wrapEngineError(err, ErrCodeEncodingFailed, "lz4 compress failed")
	}
	if n == 0 {
		// Incompressible input: lz4 reports this by returning n == 0.
		// Store the raw bytes with a sentinel length prefix of 0 so
		// ReadSnapshot knows not to decompress.
		return appendUvarintHeader(0, raw), nil
	}
	return appendUvarintHeader(len(raw), compressed[:n]), nil
}

// appendUvarintHeader prefixes payload with the uncompressed length,
// encoded as a fixed 8-byte little-endian header so ReadSnapshot can size
// its decompression buffer without guessing. A rawLen of 0 marks payload
// as stored uncompressed.
func appendUvarintHeader(rawLen int, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	for i := 0; i < 8; i++ {
		out[i] = byte(rawLen >> (8 * i))
	}
	copy(out[8:], payload)
	return out
}

// ReadSnapshot decodes a byte stream produced by EncodeSnapshot. A
// corrupted or truncated stream returns an ErrCodeDecodeError instead of
// panicking.
func ReadSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < 8 {
		return nil, newEngineError(ErrCodeDecodeError, "snapshot data too short")
	}
	var rawLen int
	for i := 0; i < 8; i++ {
		rawLen |= int(data[i]) << (8 * i)
	}
	payload := data[8:]
	// An LZ4 block decompresses to at most about 255 times its own size, so
	// a negative or larger length header can only come from corruption.
	if rawLen < 0 || rawLen/255 > len(payload) {
		return nil, newEngineError(ErrCodeDecodeError, "snapshot length header out of range")
	}

	var raw []byte
	if rawLen == 0 {
		raw = payload
	} else {
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, wrapEngineError(err, ErrCodeDecodeError, "lz4 decompress failed")
		}
		raw = raw[:n]
	}

	var ws wireSnapshot
	if err := cbor.Unmarshal(raw, &ws); err != nil {
		return nil, wrapEngineError(err, ErrCodeDecodeError, "cbor decode failed")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ws.CreatedAt)
	if err != nil {
		return nil, wrapEngineError(err, ErrCodeDecodeError, "invalid created_at timestamp")
	}

	events := make([]LogEvent, len(ws.Events))
	for i, w := range ws.Events {
		events[i] = wireToEvent(w)
	}

	return &Snapshot{
		Service:   ws.Service,
		Hostname:  ws.Hostname,
		PID:       int(ws.PID),
		CreatedAt: createdAt,
		Reason:    ws.Reason,
		Tables: SerialisableTables{
			Targets:   ws.Interner.Targets,
			Messages:  ws.Interner.Messages,
			FieldKeys: ws.Interner.FieldKeys,
		},
		Events: events,
	}, nil
}

var reasonSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeReason(reason string) string {
	s := reasonSanitizer.ReplaceAllString(reason, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// snapshotFilename builds the "<service>-<pid>-<YYYYMMDDHHMMSS>-<reason>.bin"
// filename spec.md §6 requires.
func snapshotFilename(service string, pid int, reason string) string {
	ts := time.Now().UTC().Format("20060102150405")
	var b strings.Builder
	b.WriteString(service)
	b.WriteByte('-')
	b.WriteString(itoa(pid))
	b.WriteByte('-')
	b.WriteString(ts)
	b.WriteByte('-')
	b.WriteString(sanitizeReason(reason))
	b.WriteString(".bin")
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// writeSnapshotAtomic writes data to dir/filename by writing to a sibling
// temp file, fsyncing it on a best-effort basis (spec.md §9 leaves fsync
// timing an open question; DESIGN.md records the decision to attempt it
// and proceed regardless of its result), then renaming into place so
// readers never observe a partially-written file under the final name.
func writeSnapshotAtomic(dir, filename string, data []byte) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return wrapEngineError(err, ErrCodeFileOpen, "failed to create snapshot directory")
	}

	final := filepath.Join(dir, filename)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return wrapEngineError(err, ErrCodeFileOpen, "failed to create temp snapshot file")
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return wrapEngineError(err, ErrCodeFileWrite, "failed to write temp snapshot file")
	}

	// Best-effort: a failed fsync is reported but does not abort the snapshot.
	if err := f.Sync(); err != nil {
		handleError(wrapEngineError(err, ErrCodeIoError, "fsync of temp snapshot file failed"))
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return wrapEngineError(err, ErrCodeFileWrite, "failed to close temp snapshot file")
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return wrapEngineError(err, ErrCodeFileWrite, "failed to rename snapshot into place")
	}
	return nil
}

// takeAndWriteSnapshot is the writer task's snapshot procedure (spec.md
// §4.6): take an atomic ring buffer snapshot, skip writing if empty and
// the reason doesn't demand persistence regardless, encode, compress, and
// write atomically.
func (h *Handle) takeAndWriteSnapshot(reason string) {
	events := h.ring.TakeSnapshot()
	if len(events) == 0 && !forcesEmptySnapshot(reason) {
		return
	}

	snap := buildSnapshotRecord(h.config.ServiceName, reason, events, h.interner)
	data, err := EncodeSnapshot(snap)
	if err != nil {
		handleError(wrapEngineError(err, ErrCodeEncodingFailed, "snapshot encode failed"))
		return
	}

	filename := snapshotFilename(h.config.ServiceName, snap.PID, reason)
	if err := writeSnapshotAtomic(h.config.StoragePath, filename, data); err != nil {
		handleError(wrapEngineError(err, ErrCodeIoError, "snapshot write failed"))
	}
}

func forcesEmptySnapshot(reason string) bool {
	return reason == "shutdown" || reason == "panic" || strings.HasPrefix(reason, "signal:")
}
