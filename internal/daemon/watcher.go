package daemon

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gitshadow/gitshadow/internal/ignore"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileEvent is one qualifying change inside a watched project tree.
type FileEvent struct {
	// Path is the absolute path that changed.
	Path string
	// Op is the operation that occurred (create, modify, delete).
	Op EventOp
}

// DefaultStabilizeDelay is how long a path must stay quiet before its
// change is reported. Editors and build tools often write the same file
// several times in quick succession; the delay collapses such a burst
// into a single event.
const DefaultStabilizeDelay = 500 * time.Millisecond

// Watcher watches one project tree recursively for changes. Paths the
// ignore rules classify as ignorable are filtered out: ignored
// directories are never added to the watch set, and events on ignored
// files are dropped before delivery.
type Watcher struct {
	root      string
	matcher   *ignore.Matcher
	stabilize time.Duration

	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	pending map[string]pendingChange
}

// pendingChange holds a change waiting out its stabilization delay.
// Subsequent events on the same path overwrite it, restarting the clock.
type pendingChange struct {
	op   EventOp
	seen time.Time
}

// NewWatcher creates a watcher for the project rooted at root. The
// watcher must be started with Start() before it emits events. A
// non-positive stabilize falls back to DefaultStabilizeDelay.
func NewWatcher(root string, matcher *ignore.Matcher, stabilize time.Duration) (*Watcher, error) {
	if stabilize <= 0 {
		stabilize = DefaultStabilizeDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:      root,
		matcher:   matcher,
		stabilize: stabilize,
		watcher:   fsw,
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
		pending:   make(map[string]pendingChange),
	}, nil
}

// Start walks the project tree, adds every non-ignored directory to the
// watch set, and begins emitting events. Directories created after
// startup are picked up as they appear.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.addTree(w.root); err != nil {
		w.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	w.running = true
	w.wg.Add(2)
	go w.processEvents()
	go w.flushLoop()

	return nil
}

// Stop stops watching and cleans up resources. It blocks until both
// background goroutines have exited, then closes the event channels.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	// Signal shutdown, then unblock the event loop.
	close(w.done)
	err := w.watcher.Close()

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Events returns the channel that emits stabilized change events.
// The channel is closed when the watcher is stopped.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel that emits watch errors.
// The channel is closed when the watcher is stopped.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree registers path and every non-ignored directory beneath it.
func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			// An entry below the root can vanish between the event and
			// the walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.matcher.Ignored(p) {
			return fs.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// processEvents consumes raw fsnotify events and queues qualifying
// changes for stabilized delivery.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleRaw(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// handleRaw classifies one fsnotify event, extends the watch set when a
// directory appears, and queues the change behind the stabilization
// delay. Ignored paths are dropped here, so they can neither arm a
// debounce timer downstream nor grow the watch set.
func (w *Watcher) handleRaw(event fsnotify.Event) {
	if w.matcher.Ignored(event.Name) {
		return
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// The new name raises its own create event.
		op = OpDelete
	default:
		// Chmod and friends never warrant a backup.
		return
	}

	if op == OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files inside the new directory predate its watch, so the
			// directory itself counts as the change.
			if err := w.addTree(event.Name); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
		}
	}

	w.mu.Lock()
	if prev, ok := w.pending[event.Name]; ok && prev.op == OpCreate && op == OpModify {
		// Writes that flesh out a newly created file keep it a create.
		op = OpCreate
	}
	w.pending[event.Name] = pendingChange{op: op, seen: time.Now()}
	w.mu.Unlock()
}

// flushLoop periodically delivers queued changes that have stayed quiet
// for the stabilization delay.
func (w *Watcher) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.stabilize)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			for _, ev := range w.takeStable() {
				select {
				case w.events <- ev:
				case <-w.done:
					return
				}
			}
		}
	}
}

// takeStable removes and returns every queued change older than the
// stabilization delay.
func (w *Watcher) takeStable() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var ready []FileEvent
	for path, ch := range w.pending {
		if now.Sub(ch.seen) < w.stabilize {
			continue
		}
		ready = append(ready, FileEvent{Path: path, Op: ch.op})
		delete(w.pending, path)
	}
	return ready
}
