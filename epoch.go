package pqclaimlog

import (
	"errors"
	"fmt"
	"time"
)

// ErrEpochRetired is returned when signing is requested under a
// retired epoch.
var ErrEpochRetired = errors.New("pqclaimlog: epoch retired")

// ErrUnknownEpoch is returned when verification is requested for an
// epoch with no stored public key.
var ErrUnknownEpoch = errors.New("pqclaimlog: unknown epoch")

// ErrKeyMismatch is returned when the key re-derived from the master
// seed does not match the stored public key for an epoch, indicating
// seed or derivation corruption.
var ErrKeyMismatch = errors.New("pqclaimlog: derived key does not match stored key")

// EpochRecord is the persisted state of one epoch's signing identity
// (spec §3). Private key material is never part of this record.
type EpochRecord struct {
	EpochID   string
	PublicKey []byte
	CreatedAt time.Time
	Retired   bool
}

// EpochIDFunc reports the current epoch label. The default,
// UTCDateEpochID, rotates once per UTC calendar day; spec §4.3 treats
// the choice as an external policy input as long as it is monotone
// across time.
type EpochIDFunc func(now time.Time) string

// UTCDateEpochID is the default epoch labeling policy: the UTC date in
// YYYY-MM-DD form.
func UTCDateEpochID(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// EpochManager owns the lifecycle of epoch signing keypairs (C3). It
// derives keys from a long-lived master seed, persists only public
// keys, and never writes private key material to the store.
type EpochManager struct {
	masterSeed [SeedSize]byte
	store      EpochStore
	idFunc     EpochIDFunc
}

// NewEpochManager constructs an EpochManager over store. If idFunc is
// nil, UTCDateEpochID is used.
func NewEpochManager(masterSeed [SeedSize]byte, store EpochStore, idFunc EpochIDFunc) *EpochManager {
	if idFunc == nil {
		idFunc = UTCDateEpochID
	}
	return &EpochManager{masterSeed: masterSeed, store: store, idFunc: idFunc}
}

// CurrentEpochID reports the label of the epoch that should accept
// writes right now.
func (m *EpochManager) CurrentEpochID() string {
	return m.idFunc(time.Now())
}

// GetOrCreatePublicKey returns the stored public key for epochID,
// deriving and persisting one on first use if the epoch is not yet
// retired (spec §4.3). A retired epoch with no stored key can never
// acquire one.
func (m *EpochManager) GetOrCreatePublicKey(epochID string) ([]byte, error) {
	rec, ok, err := m.store.GetEpoch(epochID)
	if err != nil {
		return nil, err
	}
	if ok {
		return rec.PublicKey, nil
	}

	pub, priv := DeriveEpochKeypair(m.masterSeed, epochID)
	zero(priv)

	rec = EpochRecord{EpochID: epochID, PublicKey: pub, CreatedAt: time.Now().UTC()}
	if err := m.store.PutEpoch(rec); err != nil {
		return nil, err
	}
	return pub, nil
}

// SignWithEpoch signs message under epochID's private key, re-deriving
// it on demand from the master seed (spec §4.3). It fails with
// ErrEpochRetired if the epoch has been retired, and ErrKeyMismatch if
// the derived public key no longer matches the one on file.
func (m *EpochManager) SignWithEpoch(epochID string, message []byte) ([]byte, error) {
	rec, ok, err := m.store.GetEpoch(epochID)
	if err != nil {
		return nil, err
	}
	if ok && rec.Retired {
		return nil, fmt.Errorf("%w: %s", ErrEpochRetired, epochID)
	}

	pub, priv := DeriveEpochKeypair(m.masterSeed, epochID)
	defer zero(priv)

	if ok {
		if !constantTimeEqual(pub, rec.PublicKey) {
			return nil, fmt.Errorf("%w: epoch %s", ErrKeyMismatch, epochID)
		}
	} else {
		rec = EpochRecord{EpochID: epochID, PublicKey: pub, CreatedAt: time.Now().UTC()}
		if err := m.store.PutEpoch(rec); err != nil {
			return nil, err
		}
	}

	sig, err := Sign(message, priv)
	if err != nil {
		return nil, fmt.Errorf("pqclaimlog: sign with epoch %s: %w", epochID, err)
	}
	return sig, nil
}

// VerifyWithEpoch reports whether sig is a valid signature over
// message under epochID's stored public key. It fails with
// ErrUnknownEpoch if no public key has ever been stored for epochID.
func (m *EpochManager) VerifyWithEpoch(epochID string, message, sig []byte) (bool, error) {
	rec, ok, err := m.store.GetEpoch(epochID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownEpoch, epochID)
	}
	return Verify(message, sig, rec.PublicKey), nil
}

// Retire marks epochID as retired, permanently forbidding further
// signatures under it (spec §4.3). Retire is idempotent: retiring an
// already-retired or never-seen epoch is not an error — the latter
// simply records a retired epoch with no public key, matching spec
// §3's "an epoch label maps to at most one public key" (zero is a
// valid count).
func (m *EpochManager) Retire(epochID string) error {
	rec, ok, err := m.store.GetEpoch(epochID)
	if err != nil {
		return err
	}
	if !ok {
		rec = EpochRecord{EpochID: epochID, CreatedAt: time.Now().UTC()}
	}
	if rec.Retired {
		return nil
	}
	rec.Retired = true
	return m.store.PutEpoch(rec)
}
