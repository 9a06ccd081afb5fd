package hotreload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// writeFile creates or replaces a file in dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func waitForEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		return ev, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestNewWatcher(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	if w.IsWatching() {
		t.Error("Watcher should not be watching initially")
	}
}

func TestWatcher_Add(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	path := writeFile(t, dir, "msy-api.yaml", "server:\n  port: 3000\n")

	if err := w.Add(path); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := w.Add(path); err != nil {
		t.Fatalf("Add() twice failed: %v", err)
	}

	files := w.Files()
	if len(files) != 1 || files[0] != path {
		t.Errorf("Files() = %v, want [%s]", files, path)
	}

	if err := w.Add(filepath.Join(dir, "missing", "config.yaml")); err == nil {
		t.Error("Expected error when the parent directory does not exist")
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	path := writeFile(t, dir, "msy-api.yaml", "service:\n  name: one\n")
	if err := w.Add(path); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()

	writeFile(t, dir, "msy-api.yaml", "service:\n  name: two\n")

	ev, ok := waitForEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("Timed out waiting for write event")
	}
	if ev.Path != path {
		t.Errorf("Event path = %s, want %s", ev.Path, path)
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		t.Errorf("Unexpected operation %s", ev.Op)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	path := writeFile(t, dir, "msy-api.yaml", "a: 1\n")
	if err := w.Add(path); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()

	writeFile(t, dir, "other.yaml", "b: 2\n")
	writeFile(t, dir, "msy-api.yaml.swp", "junk")

	if ev, ok := waitForEvent(t, w, 300*time.Millisecond); ok {
		t.Errorf("Unexpected event for %s", ev.Path)
	}
}

func TestWatcher_ReplacedByRename(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	path := writeFile(t, dir, "msy-api.yaml", "a: 1\n")
	if err := w.Add(path); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()

	tmp := writeFile(t, dir, "staging", "a: 2\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	ev, ok := waitForEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("Timed out waiting for rename event")
	}
	if ev.Path != path {
		t.Errorf("Event path = %s, want %s", ev.Path, path)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Start()
	if !w.IsWatching() {
		t.Fatal("Watcher should be watching after Start")
	}

	w.Stop()
	w.Stop()

	if w.IsWatching() {
		t.Error("Watcher should not be watching after Stop")
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events channel should be closed after Stop")
	}

	// Start after Stop is a no-op.
	w.Start()
	if w.IsWatching() {
		t.Error("Watcher should not restart after Stop")
	}
}
