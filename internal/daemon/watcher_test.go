package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitshadow/gitshadow/internal/ignore"
)

// testStabilize keeps watcher tests fast while leaving enough margin
// for slow file systems.
const testStabilize = 50 * time.Millisecond

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w, err := NewWatcher(root, ignore.NewMatcher(root), testStabilize)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	return w
}

// TestNewWatcher verifies that a fresh watcher is not yet running.
func TestNewWatcher(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	defer w.Stop()

	if w.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

// TestWatcherStartStop verifies that the watcher starts and stops cleanly.
func TestWatcherStartStop(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

// TestWatcherStartAlreadyRunning verifies that a second Start fails.
func TestWatcherStartAlreadyRunning(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}
}

// TestWatcherStartMissingRoot verifies that watching a nonexistent
// directory fails.
func TestWatcherStartMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	w, err := NewWatcher(root, ignore.NewMatcher(root), testStabilize)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err == nil {
		t.Error("Start() should fail for a nonexistent root")
	}
}

// TestWatcherFileCreated verifies that creating a file emits OpCreate.
func TestWatcherFileCreated(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Op != OpCreate {
			t.Errorf("Expected OpCreate, got %v", event.Op)
		}
		if event.Path != path {
			t.Errorf("Expected path %s, got %s", path, event.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for create event")
	}
}

// TestWatcherFileModified verifies that rewriting an existing file emits
// OpModify.
func TestWatcherFileModified(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Give the watch set time to settle before the write.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatalf("Failed to update file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Op != OpModify {
			t.Errorf("Expected OpModify, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for modify event")
	}
}

// TestWatcherFileDeleted verifies that removing a file emits OpDelete.
func TestWatcherFileDeleted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}

	select {
	case event := <-w.Events():
		if event.Op != OpDelete {
			t.Errorf("Expected OpDelete, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for delete event")
	}
}

// TestWatcherCoalescesRapidWrites verifies that a burst of writes to the
// same path becomes a single event.
func TestWatcherCoalescesRapidWrites(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(root, "draft.md")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("rev"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	select {
	case event := <-w.Events():
		if event.Path != path {
			t.Errorf("Expected path %s, got %s", path, event.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for coalesced event")
	}

	// The burst must not produce a second event.
	select {
	case event := <-w.Events():
		t.Errorf("Got second event for the same burst: %+v", event)
	case <-time.After(5 * testStabilize):
		// Expected - one event per burst
	}
}

// TestWatcherIgnoredPathsFiltered verifies that ignore rules suppress
// events, both for ruled-out directories and for ruled-out file names.
func TestWatcherIgnoredPathsFiltered(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0755); err != nil {
		t.Fatalf("Failed to create node_modules: %v", err)
	}

	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// A file inside an ignored directory and an ignored name at the root.
	if err := os.WriteFile(filepath.Join(root, "node_modules", "pkg.js"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "buffer.swp"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	select {
	case event := <-w.Events():
		t.Errorf("Got event for ignored path: %+v", event)
	case <-time.After(500 * time.Millisecond):
		// Expected - ignored paths never surface
	}
}

// TestWatcherNewDirectoryPickedUp verifies that a directory created
// after startup is watched, so changes inside it are seen.
func TestWatcherNewDirectoryPickedUp(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	sub := filepath.Join(root, "docs")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	// Let the watch extend to the new directory before writing into it.
	time.Sleep(200 * time.Millisecond)

	inner := filepath.Join(sub, "page.md")
	if err := os.WriteFile(inner, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	seen := make(map[string]EventOp)
	timeout := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case event := <-w.Events():
			seen[event.Path] = event.Op
		case <-timeout:
			t.Fatalf("Timeout waiting for events, saw %v", seen)
		}
	}

	if op, ok := seen[sub]; !ok || op != OpCreate {
		t.Errorf("Expected OpCreate for %s, got %v (present=%v)", sub, op, ok)
	}
	if op, ok := seen[inner]; !ok || op != OpCreate {
		t.Errorf("Expected OpCreate for %s, got %v (present=%v)", inner, op, ok)
	}
}

// TestWatcherStopClosesChannels verifies that Stop() closes both channels.
func TestWatcherStopClosesChannels(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	events := w.Events()
	errs := w.Errors()

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Events channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout verifying events channel closure")
	}

	select {
	case _, ok := <-errs:
		if ok {
			t.Error("Errors channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout verifying errors channel closure")
	}
}

// TestEventOpString verifies the String() method for EventOp.
func TestEventOpString(t *testing.T) {
	tests := []struct {
		op       EventOp
		expected string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.expected)
		}
	}
}
