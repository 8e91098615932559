// Package engine implements the per-account synchronization and
// state-machine engine.
//
// The engine keeps a local, always-current view of a remote baby-tracking
// account and lets callers issue actions (start/pause/resume/cancel/
// complete sleep or feeding, log diaper/growth/bottle) that converge with
// concurrently arriving remote changes.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All mutations are processed in a single goroutine. Remote notifications,
// dispatcher commands, and resync requests share one FIFO queue, which
// gives:
//   - No concurrent writers to any activity state cell
//   - Per-(child, kind) notifications applied in arrival order
//   - Readers that only ever observe fully applied transitions
//
// Reconciliation:
// Activity state is recomputed from the store after every remote change
// rather than mutated independently - the store's single-active-session
// invariant makes the recompute a point lookup. Stale echoes lose the
// last-write-wins upsert and cause no observable change.
//
// Optimistic Actions:
// Dispatcher commands call the remote first; only a confirmed remote write
// updates local state, so local state is never ahead of the backend. The
// confirmed result is applied immediately and marked pending. While
// pending and inside the conflict window, remote notifications generated
// before the action was issued do not overwrite it; the window bounds how
// long a lost echo can hold state, preventing permanent desync.
package engine
