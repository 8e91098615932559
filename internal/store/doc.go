// Package store provides SQLite-backed durable storage for the local view
// of a remote baby-tracking account.
//
// The store holds:
//   - Children: per-account child profiles, refreshed on sync
//   - Events: the append-mostly event history (sleep, feeding, diaper, growth)
//   - Cache Ranges: time windows already fully fetched from the remote
//
// # Critical Patterns
//
// Last-Write-Wins Upserts
//   - UpsertEvent applies a row only when its modified timestamp is newer
//   - Stale remote echoes become no-ops (applied=false), never regressions
//
// Deterministic Query Results
//   - Range queries order by: ORDER BY start_ns ASC, id ASC
//   - Ties on start break by the opaque remote-assigned id
//
// Single Active Session
//   - At most one event per (child, kind) in {in_progress, paused}
//   - ActiveSession backs the state-machine recompute after every upsert
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: events.child_uid must reference a known child
package store
