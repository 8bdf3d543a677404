// listener.go: listener fan-out registry and built-in sinks
//
// Grounded on the teacher's sink.go WriteSyncer/SyncWriter family (the
// same "writer owns dispatch, never blocks producers" posture) and on
// console.go / encoder-json.go for the two built-in listener
// implementations (console and NDJSON), simplified and retargeted at
// LogEvent/Interner instead of iris's Record/Encoder pair. Panic isolation
// is grounded on errors.go's recover-to-structured-error pattern.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ttlog

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agilira/ttlog/internal/bufferpool"
)

// Listener receives every event in dispatch order, on the writer task only.
// Handle must be fast and must not block; a failing Handle (panic or
// returned error) gets the listener disabled after the current call.
type Listener interface {
	Handle(event LogEvent, interner *Interner) error
}

// Flusher is an optional extension a Listener may implement; Flush is
// called once before shutdown.
type Flusher interface {
	Flush() error
}

type listenerEntry struct {
	id       uint64
	listener Listener
	disabled bool
}

// listenerRegistry is the writer task's listener set. Add/Remove mutate it
// under a mutex (the "guarded slot" alternative spec.md §4.5 allows in
// place of routing registration through the control channel); dispatch
// itself always runs on the writer task.
type listenerRegistry struct {
	mu      sync.Mutex
	entries []*listenerEntry
	nextID  uint64
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

func (r *listenerRegistry) add(l Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.entries = append(r.entries, &listenerEntry{id: r.nextID, listener: l})
	return r.nextID
}

func (r *listenerRegistry) remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *listenerRegistry) snapshot() []*listenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*listenerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *listenerRegistry) disable(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.id == id {
			e.disabled = true
			return
		}
	}
}

// dispatch calls Handle on every enabled listener for ev, in registration
// order. A listener that panics or returns an error is disabled and does
// not interrupt dispatch to the remaining listeners.
func (r *listenerRegistry) dispatch(ev LogEvent, in *Interner) {
	for _, e := range r.snapshot() {
		if e.disabled {
			continue
		}
		entry := e
		var failed bool
		panicked := safeCall(func() error {
			err := entry.listener.Handle(ev, in)
			failed = err != nil
			return err
		}, "listener.Handle")
		if panicked || failed {
			r.disable(entry.id)
		}
	}
}

// flushAll calls Flush on every listener implementing Flusher, ignoring
// listeners that don't.
func (r *listenerRegistry) flushAll() {
	for _, e := range r.snapshot() {
		if f, ok := e.listener.(Flusher); ok {
			_ = safeCall(f.Flush, "listener.Flush")
		}
	}
}

// ConsoleListener writes a human-readable line per event to a WriteSyncer,
// in the teacher's console.go format:
// "[TIMESTAMP] LEVEL target: message field=value ...".
type ConsoleListener struct {
	out WriteSyncer
}

// NewConsoleListener creates a ConsoleListener writing to w.
func NewConsoleListener(w WriteSyncer) *ConsoleListener {
	return &ConsoleListener{out: w}
}

// Handle implements Listener.
func (c *ConsoleListener) Handle(ev LogEvent, in *Interner) error {
	buf := bufferpool.Get()
	defer bufferpool.Put(buf)

	ts, level, _ := ev.Meta.Unpack()
	buf.WriteByte('[')
	buf.WriteString(time.Unix(0, ts).UTC().Format("2006-01-02T15:04:05.000Z"))
	buf.WriteString("] ")
	buf.WriteString(level.String())
	buf.WriteByte(' ')
	if target := in.ResolveTarget(ev.TargetID); target != "" {
		buf.WriteString(target)
		buf.WriteString(": ")
	}
	buf.WriteString(in.ResolveMessage(ev.MessageID))

	for i := 0; i < int(ev.NumFields); i++ {
		buf.WriteByte(' ')
		writeFieldText(buf, ev.Fields[i], in)
	}
	buf.WriteByte('\n')

	_, err := c.out.Write(buf.Bytes())
	return err
}

// Flush implements Flusher.
func (c *ConsoleListener) Flush() error { return c.out.Sync() }

// JSONListener writes one NDJSON object per event, in the teacher's
// encoder-json.go key convention ("ts","level","msg",...).
type JSONListener struct {
	out WriteSyncer
}

// NewJSONListener creates a JSONListener writing to w.
func NewJSONListener(w WriteSyncer) *JSONListener {
	return &JSONListener{out: w}
}

// Handle implements Listener.
func (j *JSONListener) Handle(ev LogEvent, in *Interner) error {
	buf := bufferpool.Get()
	defer bufferpool.Put(buf)

	ts, level, threadID := ev.Meta.Unpack()
	buf.WriteByte('{')
	buf.WriteString(`"ts":"`)
	buf.WriteString(time.Unix(0, ts).UTC().Format(time.RFC3339Nano))
	buf.WriteString(`","level":"`)
	buf.WriteString(level.String())
	buf.WriteString(`","thread":`)
	buf.WriteString(strconv.Itoa(int(threadID)))
	if target := in.ResolveTarget(ev.TargetID); target != "" {
		buf.WriteString(`,"target":`)
		writeJSONString(buf, target)
	}
	buf.WriteString(`,"msg":`)
	writeJSONString(buf, in.ResolveMessage(ev.MessageID))

	for i := 0; i < int(ev.NumFields); i++ {
		buf.WriteByte(',')
		writeFieldJSON(buf, ev.Fields[i], in)
	}
	buf.WriteString("}\n")

	_, err := j.out.Write(buf.Bytes())
	return err
}

// Flush implements Flusher.
func (j *JSONListener) Flush() error { return j.out.Sync() }

func writeFieldText(buf interface{ WriteString(string) (int, error) }, f eventField, in *Interner) {
	key := in.ResolveFieldKey(f.keyHandle)
	_, _ = buf.WriteString(key)
	_, _ = buf.WriteString("=")
	_, _ = buf.WriteString(fieldValueString(f, in))
}

func writeFieldJSON(buf interface{ WriteString(string) (int, error) }, f eventField, in *Interner) {
	key := in.ResolveFieldKey(f.keyHandle)
	writeJSONString(buf, key)
	_, _ = buf.WriteString(":")
	if f.kind == kindString {
		writeJSONString(buf, fieldValueString(f, in))
	} else {
		_, _ = buf.WriteString(fieldValueString(f, in))
	}
}

func fieldValueString(f eventField, in *Interner) string {
	switch f.kind {
	case kindBool:
		return strconv.FormatBool(f.i64 != 0)
	case kindInt8, kindInt16, kindInt32, kindInt64:
		return strconv.FormatInt(f.i64, 10)
	case kindUint8, kindUint16, kindUint32, kindUint64:
		return strconv.FormatUint(f.u64, 10)
	case kindFloat32, kindFloat64:
		return strconv.FormatFloat(f.f64, 'g', -1, 64)
	case kindString:
		if f.strHandle == handleNone {
			return f.str
		}
		return in.ResolveFieldKey(f.strHandle)
	default:
		return fmt.Sprintf("%v", f)
	}
}

func writeJSONString(buf interface{ WriteString(string) (int, error) }, s string) {
	_, _ = buf.WriteString(strconv.Quote(s))
}
