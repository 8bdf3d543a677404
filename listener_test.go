package ttlog

import (
	"bytes"
	"strings"
	"testing"
)

type bufSyncer struct {
	buf bytes.Buffer
}

func (b *bufSyncer) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufSyncer) Sync() error                 { return nil }

type panickyListener struct{}

func (panickyListener) Handle(LogEvent, *Interner) error { panic("listener blew up") }

type erroringListener struct{}

func (erroringListener) Handle(LogEvent, *Interner) error { return errListenerBoom }

var errListenerBoom = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestConsoleListenerFormatsLine(t *testing.T) {
	in := NewInterner()
	ev := buildEvent(in, Info, "svc", "hello world", 0, 0, 0, 1, []Field{Int("n", 42)})

	sink := &bufSyncer{}
	cl := NewConsoleListener(sink)
	if err := cl.Handle(ev, in); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := sink.buf.String()
	if !strings.Contains(out, "info") {
		t.Fatalf("output missing level: %q", out)
	}
	if !strings.Contains(out, "svc: hello world") {
		t.Fatalf("output missing target/message: %q", out)
	}
	if !strings.Contains(out, "n=42") {
		t.Fatalf("output missing field: %q", out)
	}
}

func TestJSONListenerFormatsRecord(t *testing.T) {
	in := NewInterner()
	ev := buildEvent(in, Warn, "", "no target here", 0, 0, 0, 3, []Field{Str("who", "bob")})

	sink := &bufSyncer{}
	jl := NewJSONListener(sink)
	if err := jl.Handle(ev, in); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := sink.buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("output missing level: %q", out)
	}
	if !strings.Contains(out, `"msg":"no target here"`) {
		t.Fatalf("output missing msg: %q", out)
	}
	if strings.Contains(out, `"target":`) {
		t.Fatalf("output should omit target when empty: %q", out)
	}
	if !strings.Contains(out, `"who":"bob"`) {
		t.Fatalf("output missing field: %q", out)
	}
}

func TestRegistryDisablesPanickingListener(t *testing.T) {
	r := newListenerRegistry()
	id := r.add(panickyListener{})

	in := NewInterner()
	ev := buildEvent(in, Info, "x", "y", 0, 0, 0, 0, nil)

	r.dispatch(ev, in) // should not panic out of dispatch itself

	for _, e := range r.snapshot() {
		if e.id == id && !e.disabled {
			t.Fatal("panicking listener was not disabled")
		}
	}

	// A second dispatch must be a no-op for the disabled listener (no panic).
	r.dispatch(ev, in)
}

func TestRegistryDisablesErroringListener(t *testing.T) {
	r := newListenerRegistry()
	id := r.add(erroringListener{})

	in := NewInterner()
	ev := buildEvent(in, Info, "x", "y", 0, 0, 0, 0, nil)
	r.dispatch(ev, in)

	for _, e := range r.snapshot() {
		if e.id == id && !e.disabled {
			t.Fatal("erroring listener was not disabled")
		}
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := newListenerRegistry()
	id := r.add(erroringListener{})
	if !r.remove(id) {
		t.Fatal("remove should report true for an existing id")
	}
	if r.remove(id) {
		t.Fatal("remove should report false for an id removed already")
	}
	if len(r.snapshot()) != 0 {
		t.Fatal("registry should be empty after removal")
	}
}
