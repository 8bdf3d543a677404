package ttlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForSnapshotFile(t *testing.T, dir string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if filepath.Ext(e.Name()) == ".bin" {
					return filepath.Join(dir, e.Name())
				}
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no snapshot file appeared in %s within %v", dir, timeout)
	return ""
}

func TestHandleSnapshotScenarioDropOldest(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig("svc", 4)
	cfg.StoragePath = dir
	cfg.ChannelCapacity = 16
	cfg.InstallSignalHooks = false

	h, err := newHandle(cfg)
	if err != nil {
		t.Fatalf("newHandle: %v", err)
	}
	defer h.Shutdown(2 * time.Second)

	for i := 1; i <= 6; i++ {
		h.Info("svc", messageForIndex(i))
	}

	h.RequestSnapshot("r1")

	path := waitForSnapshotFile(t, dir, 2*time.Second)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot file: %v", err)
	}

	snap, err := ReadSnapshot(data)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	if len(snap.Events) != 4 {
		t.Fatalf("decoded %d events, want 4", len(snap.Events))
	}
	want := []string{"m3", "m4", "m5", "m6"}
	for i, ev := range snap.Events {
		got := resolveFromTable(snap.Tables.Messages, ev.MessageID)
		if got != want[i] {
			t.Fatalf("event[%d] message = %q, want %q", i, got, want[i])
		}
	}
}

func messageForIndex(i int) string {
	return "m" + string(rune('0'+i))
}

func TestHandleLevelFilterDropsBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig("svc", 16)
	cfg.StoragePath = dir
	cfg.MinLevel = Warn
	cfg.InstallSignalHooks = false

	h, err := newHandle(cfg)
	if err != nil {
		t.Fatalf("newHandle: %v", err)
	}
	defer h.Shutdown(2 * time.Second)

	h.Info("svc", "skip")
	h.Warn("svc", "keep")

	h.RequestSnapshot("t")
	path := waitForSnapshotFile(t, dir, 2*time.Second)
	data, _ := os.ReadFile(path)
	snap, err := ReadSnapshot(data)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	if len(snap.Events) != 1 {
		t.Fatalf("decoded %d events, want 1", len(snap.Events))
	}
	if got := resolveFromTable(snap.Tables.Messages, snap.Events[0].MessageID); got != "keep" {
		t.Fatalf("decoded message = %q, want keep", got)
	}
}

func TestHandleSetLevelChangesFilterAtRuntime(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig("svc", 16)
	cfg.StoragePath = dir
	cfg.InstallSignalHooks = false

	h, err := newHandle(cfg)
	if err != nil {
		t.Fatalf("newHandle: %v", err)
	}
	defer h.Shutdown(2 * time.Second)

	if h.GetLevel() != Info {
		t.Fatalf("default level = %v, want Info", h.GetLevel())
	}
	h.SetLevel(Error)
	if h.GetLevel() != Error {
		t.Fatalf("level after SetLevel = %v, want Error", h.GetLevel())
	}
}

func TestInitRejectsSecondInstall(t *testing.T) {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()

	dir := t.TempDir()
	cfg := NewConfig("svc", 4)
	cfg.StoragePath = dir
	cfg.InstallSignalHooks = false

	h1, err := Init(cfg)
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}
	defer h1.Shutdown(2 * time.Second)
	defer func() {
		globalMu.Lock()
		global = nil
		globalMu.Unlock()
	}()

	if _, err := Init(cfg); err == nil {
		t.Fatal("second Init should fail")
	}
}

func TestAddRemoveListenerOnHandle(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig("svc", 4)
	cfg.StoragePath = dir
	cfg.InstallSignalHooks = false

	h, err := newHandle(cfg)
	if err != nil {
		t.Fatalf("newHandle: %v", err)
	}
	defer h.Shutdown(2 * time.Second)

	sink := &bufSyncer{}
	id := h.AddListener(NewConsoleListener(sink))
	h.Info("svc", "hi")

	deadline := time.Now().Add(time.Second)
	for sink.buf.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.buf.Len() == 0 {
		t.Fatal("listener never received the event")
	}

	if !h.RemoveListener(id) {
		t.Fatal("RemoveListener should report true")
	}
}
