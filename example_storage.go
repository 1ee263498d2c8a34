package pqclaimlog

// Storage Backend Comparison
//
// This package provides two Store implementations:
//
//  1. In-memory (memory_store.go)
//     - mutex-guarded maps, no durability
//     - best for: unit tests, property tests, short-lived CLI runs
//
//  2. SQLite (sqlite_store.go) - DEFAULT & RECOMMENDED FOR PRODUCTION
//     - database/sql over modernc.org/sqlite, WAL mode
//     - serializable transactions around AppendEntry and
//       InsertCheckpoint so concurrent writers are linearized instead
//       of forking the chain
//     - best for: anything that must survive a restart
//
// Usage Examples:
//
// === SQLite (production) ===
//
//	store, err := OpenSQLiteStore("/var/lib/pqclaimlog/claims.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.(interface{ Close() error }).Close()
//
// === In-memory (tests) ===
//
//	store := NewMemoryStore()
//	log := NewLog(store, keys)
