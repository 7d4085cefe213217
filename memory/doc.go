// Package memory keeps a rolling, bounded record of each user's
// conversation with the system: a fixed-size ring of recent turns per user,
// an incrementally folded digest of the active session, and an append-only
// log of summaries for closed sessions. It supplies continuity hints and
// preference signals to the orchestrator without ever growing unboundedly.
//
// Locking is sharded by user so unrelated users' requests never serialize on
// a global lock, and no store I/O happens while a shard lock is held.
package memory
