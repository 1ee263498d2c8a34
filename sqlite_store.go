package pqclaimlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// sqliteStore implements Store on top of SQLite, adapted from the
// teacher's WAL-mode append log: three tables matching the persisted
// state layout of spec §6 (log_entries, checkpoints, epoch_keys)
// instead of the teacher's logs/anchors/tail layout.
type sqliteStore struct{ db *sql.DB }

// OpenSQLiteStore opens or creates a SQLite-backed Store at dsn.
func OpenSQLiteStore(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	st := &sqliteStore{db: db}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
  id           INTEGER PRIMARY KEY,
  claim_id     TEXT    NOT NULL,
  event_type   TEXT    NOT NULL,
  ts           INTEGER NOT NULL, -- microseconds since unix epoch, UTC
  payload_hash BLOB    NOT NULL,
  prev_hash    BLOB    NOT NULL,
  actor_sig    BLOB,
  epoch_id     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
  id                   INTEGER PRIMARY KEY,
  merkle_root          BLOB    NOT NULL,
  range_lo             INTEGER NOT NULL,
  range_hi             INTEGER NOT NULL,
  prev_checkpoint_hash BLOB,
  signer_epoch_id      TEXT    NOT NULL,
  signature            BLOB    NOT NULL,
  created_at           INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS epoch_keys (
  epoch_id   TEXT PRIMARY KEY,
  public_key BLOB    NOT NULL,
  created_at INTEGER NOT NULL,
  retired    INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Close releases the underlying database handle.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) withTx(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendEntry reads the current tail's prev_hash, builds the next
// entry from it, and inserts it, all inside one serializable
// transaction — the atomic "read last then insert next" spec §5
// requires. A unique constraint violation on id (from a racing writer
// that committed first) surfaces as ErrChainRaced.
func (s *sqliteStore) AppendEntry(build func(prevHash [HashSize]byte) Entry) (id uint64, err error) {
	err = s.withTx(func(tx *sql.Tx) error {
		var maxID sql.NullInt64
		var lastPrevHash []byte
		row := tx.QueryRow(`SELECT id, prev_hash FROM log_entries ORDER BY id DESC LIMIT 1`)
		scanErr := row.Scan(&maxID, &lastPrevHash)
		prevHash := GenesisHash
		nextID := uint64(1)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			// empty log: genesis
		case scanErr != nil:
			return scanErr
		default:
			copy(prevHash[:], lastPrevHash)
			nextID = uint64(maxID.Int64) + 1
		}

		e := build(prevHash)
		e.ID = nextID

		res, execErr := tx.Exec(`INSERT INTO log_entries(id, claim_id, event_type, ts, payload_hash, prev_hash, actor_sig, epoch_id)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ClaimID, e.EventType, e.Timestamp.UnixMicro(), e.PayloadHash[:], e.PrevHash[:], nullableBytes(e.ActorSig), e.EpochID)
		if execErr != nil {
			return fmt.Errorf("%w: %v", ErrChainRaced, execErr)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrChainRaced
		}
		id = e.ID
		return nil
	})
	return id, err
}

func (s *sqliteStore) GetEntry(id uint64) (Entry, error) {
	row := s.db.QueryRow(`SELECT id, claim_id, event_type, ts, payload_hash, prev_hash, actor_sig, epoch_id
		FROM log_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: entry %d", ErrNotFound, id)
	}
	return e, err
}

func (s *sqliteStore) RangeEntries(lo, hi uint64) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, claim_id, event_type, ts, payload_hash, prev_hash, actor_sig, epoch_id
		FROM log_entries WHERE id >= ? AND id <= ? ORDER BY id ASC`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LastEntry() (Entry, bool, error) {
	row := s.db.QueryRow(`SELECT id, claim_id, event_type, ts, payload_hash, prev_hash, actor_sig, epoch_id
		FROM log_entries ORDER BY id DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var tsMicros int64
	var payloadHash, prevHash, actorSig []byte
	if err := row.Scan(&e.ID, &e.ClaimID, &e.EventType, &tsMicros, &payloadHash, &prevHash, &actorSig, &e.EpochID); err != nil {
		return Entry{}, err
	}
	e.Timestamp = time.UnixMicro(tsMicros).UTC()
	copy(e.PayloadHash[:], payloadHash)
	copy(e.PrevHash[:], prevHash)
	e.ActorSig = actorSig
	return e, nil
}

// InsertCheckpoint assigns the next checkpoint id inside a
// serializable transaction so that two concurrent checkpoint attempts
// cannot both commit over overlapping ranges (spec §5).
func (s *sqliteStore) InsertCheckpoint(build func(prev *Checkpoint) Checkpoint) (cp Checkpoint, err error) {
	err = s.withTx(func(tx *sql.Tx) error {
		prev, hasPrev, pErr := lastCheckpointTx(tx)
		if pErr != nil {
			return pErr
		}
		var prevPtr *Checkpoint
		if hasPrev {
			prevPtr = &prev
		}

		nextID := uint64(1)
		if hasPrev {
			nextID = prev.ID + 1
		}

		cp = build(prevPtr)
		cp.ID = nextID

		var prevHashBytes []byte
		if cp.PrevCheckpointHash != nil {
			prevHashBytes = cp.PrevCheckpointHash[:]
		}

		res, execErr := tx.Exec(`INSERT INTO checkpoints(id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			cp.ID, cp.MerkleRoot[:], cp.RangeLo, cp.RangeHi, prevHashBytes, cp.SignerEpochID, cp.Signature, cp.CreatedAt.UnixMicro())
		if execErr != nil {
			return fmt.Errorf("pqclaimlog: insert checkpoint: %w", execErr)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return errors.New("pqclaimlog: checkpoint insert affected no rows")
		}
		return nil
	})
	return cp, err
}

func lastCheckpointTx(tx *sql.Tx) (Checkpoint, bool, error) {
	row := tx.QueryRow(`SELECT id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at
		FROM checkpoints ORDER BY id DESC LIMIT 1`)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func scanCheckpoint(row rowScanner) (Checkpoint, error) {
	var cp Checkpoint
	var merkleRootB, sig, prevHashB []byte
	var createdAtMicros int64
	if err := row.Scan(&cp.ID, &merkleRootB, &cp.RangeLo, &cp.RangeHi, &prevHashB, &cp.SignerEpochID, &sig, &createdAtMicros); err != nil {
		return Checkpoint{}, err
	}
	copy(cp.MerkleRoot[:], merkleRootB)
	cp.Signature = sig
	cp.CreatedAt = time.UnixMicro(createdAtMicros).UTC()
	if prevHashB != nil {
		var h [HashSize]byte
		copy(h[:], prevHashB)
		cp.PrevCheckpointHash = &h
	}
	return cp, nil
}

func (s *sqliteStore) GetCheckpoint(id uint64) (Checkpoint, error) {
	row := s.db.QueryRow(`SELECT id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at
		FROM checkpoints WHERE id = ?`, id)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("%w: checkpoint %d", ErrNotFound, id)
	}
	return cp, err
}

func (s *sqliteStore) LastCheckpoint() (Checkpoint, bool, error) {
	row := s.db.QueryRow(`SELECT id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at
		FROM checkpoints ORDER BY id DESC LIMIT 1`)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (s *sqliteStore) ListCheckpoints() ([]Checkpoint, error) {
	rows, err := s.db.Query(`SELECT id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at
		FROM checkpoints ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CheckpointContaining(entryID uint64) (Checkpoint, bool, error) {
	row := s.db.QueryRow(`SELECT id, merkle_root, range_lo, range_hi, prev_checkpoint_hash, signer_epoch_id, signature, created_at
		FROM checkpoints WHERE range_lo <= ? AND range_hi >= ? LIMIT 1`, entryID, entryID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (s *sqliteStore) GetEpoch(epochID string) (EpochRecord, bool, error) {
	var rec EpochRecord
	var createdAtMicros int64
	var retired int
	err := s.db.QueryRow(`SELECT epoch_id, public_key, created_at, retired FROM epoch_keys WHERE epoch_id = ?`, epochID).
		Scan(&rec.EpochID, &rec.PublicKey, &createdAtMicros, &retired)
	if errors.Is(err, sql.ErrNoRows) {
		return EpochRecord{}, false, nil
	}
	if err != nil {
		return EpochRecord{}, false, err
	}
	rec.CreatedAt = time.UnixMicro(createdAtMicros).UTC()
	rec.Retired = retired != 0
	return rec, true, nil
}

func (s *sqliteStore) PutEpoch(rec EpochRecord) error {
	_, err := s.db.Exec(`INSERT INTO epoch_keys(epoch_id, public_key, created_at, retired) VALUES(?, ?, ?, ?)
		ON CONFLICT(epoch_id) DO UPDATE SET retired=excluded.retired`,
		rec.EpochID, rec.PublicKey, rec.CreatedAt.UnixMicro(), boolToInt(rec.Retired))
	return err
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
