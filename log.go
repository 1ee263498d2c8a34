package pqclaimlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrChainRaced is returned when a concurrent append violated the
// serializability of the "read last entry, then insert next" sequence
// (spec §5). Callers may retry.
var ErrChainRaced = errors.New("pqclaimlog: chain raced: concurrent append")

// ErrInvalidInput is returned for malformed payloads or inverted
// ranges.
var ErrInvalidInput = errors.New("pqclaimlog: invalid input")

// ErrNotFound is returned when a requested entry or checkpoint id does
// not exist.
var ErrNotFound = errors.New("pqclaimlog: not found")

// maxClaimIDLen and maxEventTypeLen bound the two free-form string
// fields (spec §3 "opaque bounded-length string").
const (
	maxClaimIDLen   = 256
	maxEventTypeLen = 64
)

// Entry is an immutable record in the append-only log (spec §3).
type Entry struct {
	ID          uint64
	ClaimID     string
	EventType   string
	Timestamp   time.Time // UTC, microsecond resolution
	PayloadHash [HashSize]byte
	PrevHash    [HashSize]byte
	ActorSig    []byte // optional; nil if absent
	EpochID     string
}

// timestampBytes is the big-endian 8-byte microsecond count fed into
// the chain hash (spec §4.4).
func timestampBytes(ts time.Time) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ts.UTC().UnixMicro()))
	return b
}

// chainHash computes H(prevHash || payloadHash || timestampBytes),
// the per-entry back-reference defined in spec §3.
func chainHash(prevHash, payloadHash [HashSize]byte, ts time.Time) [HashSize]byte {
	tsb := timestampBytes(ts)
	return Hash(prevHash[:], payloadHash[:], tsb[:])
}

// EpochSource supplies the label of the epoch currently accepting
// writes (spec §4.3's current_epoch_id, consumed here only as an
// informational tag on each entry).
type EpochSource interface {
	CurrentEpochID() string
}

// Log is the append-only hash-chained event log (C4). It owns entries
// exclusively; the checkpoint engine and verifier only read them back
// through LogStore.
type Log struct {
	store LogStore
	epoch EpochSource
}

// NewLog constructs a Log over store, tagging each new entry with the
// epoch label epoch reports current at append time.
func NewLog(store LogStore, epoch EpochSource) *Log {
	return &Log{store: store, epoch: epoch}
}

// Append canonicalizes payload, computes its hash, chains it to the
// current tail, and persists the new entry (spec §4.4). It returns the
// assigned id.
func (l *Log) Append(claimID, eventType string, payload any) (uint64, error) {
	if claimID == "" || len(claimID) > maxClaimIDLen {
		return 0, fmt.Errorf("%w: claim_id must be 1..%d bytes", ErrInvalidInput, maxClaimIDLen)
	}
	if eventType == "" || len(eventType) > maxEventTypeLen {
		return 0, fmt.Errorf("%w: event_type must be 1..%d bytes", ErrInvalidInput, maxEventTypeLen)
	}

	canon, err := Canonicalize(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	payloadHash := Hash(canon)

	now := time.Now().UTC().Truncate(time.Microsecond)
	epochID := ""
	if l.epoch != nil {
		epochID = l.epoch.CurrentEpochID()
	}

	id, err := l.store.AppendEntry(func(prevHash [HashSize]byte) Entry {
		return Entry{
			ClaimID:     claimID,
			EventType:   eventType,
			Timestamp:   now,
			PayloadHash: payloadHash,
			PrevHash:    chainHash(prevHash, payloadHash, now),
			EpochID:     epochID,
		}
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns the entry with the given id.
func (l *Log) Get(id uint64) (Entry, error) {
	return l.store.GetEntry(id)
}

// Range returns entries [lo, hi] inclusive, in ascending id order.
func (l *Log) Range(lo, hi uint64) ([]Entry, error) {
	if lo == 0 || lo > hi {
		return nil, fmt.Errorf("%w: invalid range [%d,%d]", ErrInvalidInput, lo, hi)
	}
	return l.store.RangeEntries(lo, hi)
}

// Tail returns the last n entries in id order (fewer if the log is
// shorter than n).
func (l *Log) Tail(n uint64) ([]Entry, error) {
	last, ok, err := l.store.LastEntry()
	if err != nil {
		return nil, err
	}
	if !ok || n == 0 {
		return nil, nil
	}
	lo := uint64(1)
	if last.ID > n {
		lo = last.ID - n + 1
	}
	return l.store.RangeEntries(lo, last.ID)
}

// LastID returns the id of the most recently appended entry, or 0 if
// the log is empty.
func (l *Log) LastID() (uint64, error) {
	last, ok, err := l.store.LastEntry()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last.ID, nil
}
