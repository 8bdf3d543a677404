package ttlog

import (
	"sync"
	"testing"
)

func TestInternTargetEmptyIsHandleNone(t *testing.T) {
	in := NewInterner()
	if h := in.InternTarget(""); h != handleNone {
		t.Fatalf("InternTarget(\"\") = %d, want handleNone", h)
	}
	if got := in.ResolveTarget(handleNone); got != "" {
		t.Fatalf("ResolveTarget(handleNone) = %q, want empty", got)
	}
}

func TestInternHandleStableAcrossCalls(t *testing.T) {
	in := NewInterner()
	h1 := in.InternMessage("hello")
	h2 := in.InternMessage("hello")
	h3 := in.InternMessage("world")

	if h1 != h2 {
		t.Fatalf("same string got different handles: %d vs %d", h1, h2)
	}
	if h1 == h3 {
		t.Fatal("different strings got the same handle")
	}
	if got := in.ResolveMessage(h1); got != "hello" {
		t.Fatalf("ResolveMessage(h1) = %q, want hello", got)
	}
	if got := in.ResolveMessage(h3); got != "world" {
		t.Fatalf("ResolveMessage(h3) = %q, want world", got)
	}
}

func TestInternFieldKeySharedWithStringValues(t *testing.T) {
	in := NewInterner()
	keyHandle := in.InternFieldKey("count")
	valHandle := in.InternFieldKey("some-value")

	if keyHandle == valHandle {
		t.Fatal("unrelated strings collided on the same handle")
	}
	if got := in.ResolveFieldKey(keyHandle); got != "count" {
		t.Fatalf("ResolveFieldKey(keyHandle) = %q", got)
	}
	if got := in.ResolveFieldKey(valHandle); got != "some-value" {
		t.Fatalf("ResolveFieldKey(valHandle) = %q", got)
	}
}

func TestInternOverflowSentinel(t *testing.T) {
	ns := newNamespace()
	ns.next = uint32(handleOverflow) - 1 // next successful intern lands exactly on the boundary

	h := ns.intern("last-valid")
	if h == handleOverflow {
		t.Fatalf("expected a real handle just below overflow, got overflow sentinel")
	}

	h2 := ns.intern("tips-into-overflow")
	if h2 != handleOverflow {
		t.Fatalf("expected handleOverflow once the namespace is exhausted, got %d", h2)
	}
	if got := ns.resolve(handleOverflow); got != overflowLiteral {
		t.Fatalf("resolve(handleOverflow) = %q, want %q", got, overflowLiteral)
	}

	// Every subsequent string also overflows rather than panicking.
	h3 := ns.intern("still-overflowing")
	if h3 != handleOverflow {
		t.Fatalf("expected overflow to persist, got %d", h3)
	}
}

func TestInternConcurrentSameStringOneHandle(t *testing.T) {
	in := NewInterner()
	const goroutines = 64

	var wg sync.WaitGroup
	handles := make([]uint16, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			handles[i] = in.InternTarget("shared-target")
		}()
	}
	wg.Wait()

	want := handles[0]
	for i, h := range handles {
		if h != want {
			t.Fatalf("goroutine %d got handle %d, want %d", i, h, want)
		}
	}
}

func TestExportTablesOrderedByHandle(t *testing.T) {
	in := NewInterner()
	a := in.InternTarget("a")
	b := in.InternTarget("b")
	c := in.InternTarget("c")

	tables := in.ExportTables()
	if got := tables.Targets[a-1]; got != "a" {
		t.Fatalf("tables.Targets[a-1] = %q, want a", got)
	}
	if got := tables.Targets[b-1]; got != "b" {
		t.Fatalf("tables.Targets[b-1] = %q, want b", got)
	}
	if got := tables.Targets[c-1]; got != "c" {
		t.Fatalf("tables.Targets[c-1] = %q, want c", got)
	}
}
