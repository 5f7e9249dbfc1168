// Package daemon contains the continuous backup engine: per-project
// file watching, debounced committing, and the periodic push sweep.
//
// # Architecture
//
// The package is built from three components, one nested inside the
// next:
//
//   - Watcher: recursive fsnotify watching of one project tree, with
//     ignore-rule filtering and write-burst stabilization
//   - Project: the supervisor for one working directory; owns the
//     debounce timer and performs commits and pushes
//   - Engine: the fleet controller; runs one Project per configured
//     directory, the periodic push sweep, and live reconfiguration
//
// # Event Flow
//
// A file change travels through two quiet periods before it becomes a
// commit. The stabilization delay (~500ms) collapses a rapid series of
// writes to the same path into one event. The debounce window (default
// 3s) then restarts on every delivered event, so a burst of edits
// across many files yields exactly one commit attempt, after the burst
// ends:
//
//	write → [stabilize] → FileEvent → [debounce] → commit
//
// Pushing is decoupled from committing. Every push interval (default
// 5m) the engine sweeps all projects in sequence: confirm or create the
// remote repository, compare local and remote state, and force-push
// only the projects that actually diverged. A project whose remote
// already matches costs one remote-ref listing and nothing more.
//
// # Reconfiguration
//
// Engine.Reload hands the run loop a new Snapshot. Reconciliation
// removes supervisors for dropped directories first, leaves surviving
// ones untouched (a pending debounce keeps its timer), and gives newly
// added directories an immediate commit and push. Sweeps and reloads
// run on the same loop goroutine and therefore never overlap.
//
// # Thread Safety
//
// Watcher and Engine are safe for concurrent use. Each Project
// serializes its own git operations, so a debounce-triggered commit and
// a sweep-triggered push never interleave on one working directory.
//
// # Shutdown
//
// Cancelling the context passed to Engine.Run tears everything down
// deterministically: debounce timers are cancelled before watchers
// stop, and in-flight git operations finish before Run returns.
package daemon
