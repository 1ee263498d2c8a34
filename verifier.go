package pqclaimlog

import (
	"context"
	"errors"
	"fmt"
)

// TamperReport describes the first point at which a verified chain
// diverges from what it should be (spec §4.6, §7).
type TamperReport struct {
	FirstBadID uint64
	Expected   [HashSize]byte
	Found      [HashSize]byte
}

func (r TamperReport) Error() string {
	return fmt.Sprintf("pqclaimlog: chain tampered at entry %d: expected %x, found %x", r.FirstBadID, r.Expected, r.Found)
}

// CheckpointFaultKind names the way a checkpoint failed verification.
type CheckpointFaultKind int

const (
	MerkleMismatch CheckpointFaultKind = iota
	BadSignature
	BrokenCheckpointChain
)

func (k CheckpointFaultKind) String() string {
	switch k {
	case MerkleMismatch:
		return "merkle_mismatch"
	case BadSignature:
		return "bad_signature"
	case BrokenCheckpointChain:
		return "broken_checkpoint_chain"
	default:
		return "unknown"
	}
}

// CheckpointFault describes how a checkpoint failed verification (spec
// §4.6, §7).
type CheckpointFault struct {
	Kind         CheckpointFaultKind
	CheckpointID uint64
}

func (f CheckpointFault) Error() string {
	return fmt.Sprintf("pqclaimlog: checkpoint %d failed verification: %s", f.CheckpointID, f.Kind)
}

// EpochVerifier is the subset of EpochManager the verifier needs.
type EpochVerifier interface {
	VerifyWithEpoch(epochID string, message, sig []byte) (bool, error)
}

// LogReader is the subset of Log the verifier needs.
type LogReader interface {
	Range(lo, hi uint64) ([]Entry, error)
	Get(id uint64) (Entry, error)
	LastID() (uint64, error)
}

// CheckpointReader is the subset of CheckpointStore the verifier
// needs.
type CheckpointReader interface {
	ListCheckpoints() ([]Checkpoint, error)
	GetCheckpoint(id uint64) (Checkpoint, error)
}

// Verifier reconstructs chains, Merkle roots and signatures to answer
// whether the log has been tampered with, and at which entry (C6). It
// holds no exclusive ownership over anything; all of its reads go
// through the same adapter the other subsystems write through.
type Verifier struct {
	log  LogReader
	cps  CheckpointReader
	keys EpochVerifier
}

// NewVerifier constructs a Verifier.
func NewVerifier(log LogReader, cps CheckpointReader, keys EpochVerifier) *Verifier {
	return &Verifier{log: log, cps: cps, keys: keys}
}

// VerifyChain checks the hash-chain linkage of entries [lo, hi] (spec
// §4.6, §8 property 1). The expected prev_hash of the first entry is
// trusted as given: GenesisHash if lo == 1, else whatever that entry's
// own stored prev_hash is, treated as an anchor. ctx is checked between
// entries so a long range scan can be cancelled (spec §5).
func (v *Verifier) VerifyChain(ctx context.Context, lo, hi uint64) error {
	if lo == 0 || lo > hi {
		return fmt.Errorf("%w: invalid range [%d,%d]", ErrInvalidInput, lo, hi)
	}
	entries, err := v.log.Range(lo, hi)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrEmptyRange
	}

	prevHash := GenesisHash
	if lo > 1 {
		prevHash = entries[0].PrevHash
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lo == 1 || i > 0 {
			expected := chainHash(prevHash, e.PayloadHash, e.Timestamp)
			if !constantTimeEqual(expected[:], e.PrevHash[:]) {
				return TamperReport{FirstBadID: e.ID, Expected: expected, Found: e.PrevHash}
			}
		}
		prevHash = e.PrevHash
	}
	return nil
}

// VerifyCheckpoint rebuilds cp's Merkle root, checks its signature
// under the signer epoch's public key, and (if a previous checkpoint
// is given) recomputes prev_checkpoint_hash (spec §4.6). It returns the
// first CheckpointFault found, in the order: Merkle, signature, chain.
func (v *Verifier) VerifyCheckpoint(cp Checkpoint, prev *Checkpoint) error {
	entries, err := v.log.Range(cp.RangeLo, cp.RangeHi)
	if err != nil {
		return err
	}
	leaves := make([][HashSize]byte, len(entries))
	for i, e := range entries {
		leaves[i] = e.PrevHash
	}
	root, err := merkleRoot(leaves)
	if err != nil {
		return err
	}
	if !constantTimeEqual(root[:], cp.MerkleRoot[:]) {
		return CheckpointFault{Kind: MerkleMismatch, CheckpointID: cp.ID}
	}

	ok, err := v.keys.VerifyWithEpoch(cp.SignerEpochID, cp.MerkleRoot[:], cp.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return CheckpointFault{Kind: BadSignature, CheckpointID: cp.ID}
	}

	if prev != nil {
		wantHash := Hash(prev.canonicalBytes())
		if cp.PrevCheckpointHash == nil || !constantTimeEqual(wantHash[:], cp.PrevCheckpointHash[:]) {
			return CheckpointFault{Kind: BrokenCheckpointChain, CheckpointID: cp.ID}
		}
	} else if cp.PrevCheckpointHash != nil {
		return CheckpointFault{Kind: BrokenCheckpointChain, CheckpointID: cp.ID}
	}

	return nil
}

// FullReport is the aggregate result of FullVerification.
type FullReport struct {
	ChainOK           bool
	ChainError        error
	CheckpointsOK     bool
	CheckpointFault   error
	FaultCheckpointID uint64
}

// OK reports whether the whole log and every checkpoint passed
// verification.
func (r FullReport) OK() bool {
	return r.ChainOK && r.CheckpointsOK
}

// FullVerification runs VerifyChain over the whole log and
// VerifyCheckpoint over every stored checkpoint in order, stopping the
// checkpoint pass at the first fault (spec §4.6). ctx is checked
// between checkpoints as well as between entries (spec §5).
func (v *Verifier) FullVerification(ctx context.Context) (FullReport, error) {
	var report FullReport

	lastID, err := v.log.LastID()
	if err != nil {
		return report, err
	}

	if lastID == 0 {
		report.ChainOK = true
	} else if err := v.VerifyChain(ctx, 1, lastID); err != nil {
		var tr TamperReport
		if errors.As(err, &tr) {
			report.ChainError = tr
		} else {
			return report, err
		}
	} else {
		report.ChainOK = true
	}

	checkpoints, err := v.cps.ListCheckpoints()
	if err != nil {
		return report, err
	}

	report.CheckpointsOK = true
	var prev *Checkpoint
	for i := range checkpoints {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cp := checkpoints[i]
		if err := v.VerifyCheckpoint(cp, prev); err != nil {
			var fault CheckpointFault
			if errors.As(err, &fault) {
				report.CheckpointsOK = false
				report.CheckpointFault = fault
				report.FaultCheckpointID = fault.CheckpointID
				break
			}
			return report, err
		}
		prev = &checkpoints[i]
	}

	return report, nil
}
