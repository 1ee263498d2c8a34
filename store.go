package pqclaimlog

// LogStore is the persistence sub-interface owned by Log (C4). An
// implementation MUST serialize AppendEntry calls so that the
// "read last prev_hash, then insert next id" sequence is atomic
// (spec §5) — racing callers must be linearized by the store, not by
// Log itself.
type LogStore interface {
	// AppendEntry invokes build with the prev_hash of the current tail
	// (GenesisHash if the log is empty), under whatever lock or
	// transaction the store needs to make the read-then-insert atomic,
	// and persists the Entry it returns with the next sequential id.
	// It returns ErrChainRaced if two callers raced and could not both
	// be linearized.
	AppendEntry(build func(prevHash [HashSize]byte) Entry) (uint64, error)
	GetEntry(id uint64) (Entry, error)
	RangeEntries(lo, hi uint64) ([]Entry, error)
	LastEntry() (Entry, bool, error)
}

// CheckpointStore is the persistence sub-interface owned by
// CheckpointEngine (C5).
type CheckpointStore interface {
	// InsertCheckpoint persists cp, assigning the next sequential id
	// under the same kind of atomicity guarantee AppendEntry requires,
	// since two concurrent checkpoint attempts must not both succeed
	// over overlapping ranges (spec §5).
	InsertCheckpoint(build func(prev *Checkpoint) Checkpoint) (Checkpoint, error)
	GetCheckpoint(id uint64) (Checkpoint, error)
	LastCheckpoint() (Checkpoint, bool, error)
	ListCheckpoints() ([]Checkpoint, error)
	CheckpointContaining(entryID uint64) (Checkpoint, bool, error)
}

// EpochStore is the persistence sub-interface owned by EpochManager
// (C3).
type EpochStore interface {
	GetEpoch(epochID string) (EpochRecord, bool, error)
	// PutEpoch inserts a new epoch record or, if one already exists,
	// overwrites it (used only to flip retired false->true).
	PutEpoch(rec EpochRecord) error
}

// Store is the full persistence adapter (C7): the union of the three
// ownership-scoped sub-interfaces. Concrete backends are substitutable;
// Log, CheckpointEngine and EpochManager are each constructed with only
// the slice of Store they need, per spec §3's "Ownership" note.
type Store interface {
	LogStore
	CheckpointStore
	EpochStore
}
