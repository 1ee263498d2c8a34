// Package pqclaimlog implements a tamper-evident, post-quantum-secure
// event log for insurance-claim workflows.
//
// Four subsystems cooperate through a shared Store:
//
//   - EpochManager derives forward-secure signing keypairs per epoch
//     from a long-lived master seed, and never persists private key
//     material.
//   - Log is an append-only, hash-chained sequence of claim events.
//   - CheckpointEngine periodically commits a contiguous range of the
//     log into a signed Merkle root, chained to the previous
//     checkpoint.
//   - Verifier replays the hash chain and the Merkle/signature math to
//     report whether, and where, the log diverges from what it should
//     be.
//
// Each subsystem owns its own slice of persisted state exclusively;
// the others only read it back through the Store interfaces in
// store.go. Two Store implementations are provided: a SQLite-backed
// one for production (sqlite_store.go) and a mutex-guarded in-memory
// one for tests (memory_store.go).
package pqclaimlog
