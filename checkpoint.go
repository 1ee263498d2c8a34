package pqclaimlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyRange is returned when a checkpoint or verification is
// requested over a range covering no entries.
var ErrEmptyRange = errors.New("pqclaimlog: empty range")

// Checkpoint is a signed commitment to a contiguous range of log
// entries, chained to the previous checkpoint (spec §3).
type Checkpoint struct {
	ID                 uint64
	MerkleRoot         [HashSize]byte
	RangeLo, RangeHi   uint64
	PrevCheckpointHash *[HashSize]byte // nil for the first checkpoint
	SignerEpochID      string
	Signature          []byte
	CreatedAt          time.Time
}

// canonicalBytes serializes the fields of cp that feed into the next
// checkpoint's PrevCheckpointHash: (id, merkle_root, range_lo, range_hi,
// signer_epoch_id), spec §3.
func (cp Checkpoint) canonicalBytes() []byte {
	buf := make([]byte, 0, 8+HashSize+8+8+len(cp.SignerEpochID))
	var idBuf, loBuf, hiBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], cp.ID)
	binary.BigEndian.PutUint64(loBuf[:], cp.RangeLo)
	binary.BigEndian.PutUint64(hiBuf[:], cp.RangeHi)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, cp.MerkleRoot[:]...)
	buf = append(buf, loBuf[:]...)
	buf = append(buf, hiBuf[:]...)
	buf = append(buf, cp.SignerEpochID...)
	return buf
}

// Side names which side of a Merkle parent a sibling hash sits on.
type Side int

const (
	Left Side = iota
	Right
)

// ProofStep is one level of an inclusion proof: the sibling hash at
// that level and which side it sits on relative to the node being
// proved (spec §4.5).
type ProofStep struct {
	Sibling [HashSize]byte
	Side    Side
}

// InclusionProof is the path from one entry's leaf to a checkpoint's
// Merkle root.
type InclusionProof struct {
	CheckpointID uint64
	Steps        []ProofStep
}

// merkleParent computes SHA3-256(left || right), the binary Merkle
// node function used throughout C5.
func merkleParent(left, right [HashSize]byte) [HashSize]byte {
	return Hash(left[:], right[:])
}

// buildMerkleLevels reduces leaves to a full sequence of levels,
// level[0] being the leaves themselves and the last level the single
// root, duplicating the final node of any odd-length level (spec
// §4.5, §8 property 4).
func buildMerkleLevels(leaves [][HashSize]byte) ([][][HashSize]byte, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyRange
	}
	levels := [][][HashSize]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([][HashSize]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			left := cur[i]
			right := left
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, merkleParent(left, right))
		}
		levels = append(levels, next)
		cur = next
	}
	return levels, nil
}

// merkleRoot returns the root produced by the canonical construction
// over leaves.
func merkleRoot(leaves [][HashSize]byte) ([HashSize]byte, error) {
	levels, err := buildMerkleLevels(leaves)
	if err != nil {
		return [HashSize]byte{}, err
	}
	last := levels[len(levels)-1]
	return last[0], nil
}

// EpochSigner is the subset of EpochManager the checkpoint engine
// needs: it signs under the epoch that is current right now.
type EpochSigner interface {
	EpochSource
	SignWithEpoch(epochID string, message []byte) ([]byte, error)
}

// LogRanger is the subset of Log the checkpoint engine needs to pull a
// contiguous range of entries to commit.
type LogRanger interface {
	Range(lo, hi uint64) ([]Entry, error)
	LastID() (uint64, error)
}

// CheckpointEngine builds Merkle-tree checkpoints over ranges of log
// entries and signs them under the current epoch key (C5). It owns
// checkpoints exclusively.
type CheckpointEngine struct {
	store CheckpointStore
	log   LogRanger
	keys  EpochSigner
}

// NewCheckpointEngine constructs a CheckpointEngine.
func NewCheckpointEngine(store CheckpointStore, log LogRanger, keys EpochSigner) *CheckpointEngine {
	return &CheckpointEngine{store: store, log: log, keys: keys}
}

// Generate commits the range that starts right after the last
// checkpoint (or at 1) and ends at the current tail (or at
// *forceRangeHi if forceRangeHi is non-nil) into a new signed
// checkpoint, chained to the previous one (spec §4.5).
func (c *CheckpointEngine) Generate(forceRangeHi *uint64) (Checkpoint, error) {
	last, hasLast, err := c.store.LastCheckpoint()
	if err != nil {
		return Checkpoint{}, err
	}

	rangeLo := uint64(1)
	if hasLast {
		rangeLo = last.RangeHi + 1
	}

	rangeHi := uint64(0)
	if forceRangeHi != nil {
		rangeHi = *forceRangeHi
	} else {
		rangeHi, err = c.log.LastID()
		if err != nil {
			return Checkpoint{}, err
		}
	}

	if rangeLo > rangeHi {
		return Checkpoint{}, ErrEmptyRange
	}

	entries, err := c.log.Range(rangeLo, rangeHi)
	if err != nil {
		return Checkpoint{}, err
	}
	leaves := make([][HashSize]byte, len(entries))
	for i, e := range entries {
		leaves[i] = e.PrevHash
	}
	root, err := merkleRoot(leaves)
	if err != nil {
		return Checkpoint{}, err
	}

	var prevHash *[HashSize]byte
	if hasLast {
		h := Hash(last.canonicalBytes())
		prevHash = &h
	}

	signerEpoch := c.keys.CurrentEpochID()
	sig, err := c.keys.SignWithEpoch(signerEpoch, root[:])
	if err != nil {
		return Checkpoint{}, fmt.Errorf("pqclaimlog: sign checkpoint: %w", err)
	}

	cp, err := c.store.InsertCheckpoint(func(_ *Checkpoint) Checkpoint {
		return Checkpoint{
			MerkleRoot:         root,
			RangeLo:            rangeLo,
			RangeHi:            rangeHi,
			PrevCheckpointHash: prevHash,
			SignerEpochID:      signerEpoch,
			Signature:          sig,
			CreatedAt:          time.Now().UTC(),
		}
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// ListLevels returns every level of the Merkle tree over [lo, hi],
// level[0] the leaves and the last level the single root — for
// external visualization and inclusion-proof construction (spec
// §4.5).
func (c *CheckpointEngine) ListLevels(lo, hi uint64) ([][][HashSize]byte, error) {
	entries, err := c.log.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	leaves := make([][HashSize]byte, len(entries))
	for i, e := range entries {
		leaves[i] = e.PrevHash
	}
	return buildMerkleLevels(leaves)
}

// InclusionProof rebuilds the Merkle path from entryID's leaf to the
// root of the checkpoint whose range contains it (spec §4.5).
func (c *CheckpointEngine) InclusionProof(entryID uint64) (InclusionProof, error) {
	cp, ok, err := c.store.CheckpointContaining(entryID)
	if err != nil {
		return InclusionProof{}, err
	}
	if !ok {
		return InclusionProof{}, fmt.Errorf("%w: entry %d is not covered by any checkpoint", ErrNotFound, entryID)
	}

	levels, err := c.ListLevels(cp.RangeLo, cp.RangeHi)
	if err != nil {
		return InclusionProof{}, err
	}

	steps, err := inclusionSteps(levels, entryID-cp.RangeLo)
	if err != nil {
		return InclusionProof{}, err
	}
	return InclusionProof{CheckpointID: cp.ID, Steps: steps}, nil
}

// inclusionSteps walks levels bottom-up from leaf index idx, emitting
// the sibling at each level and which side it sits on.
func inclusionSteps(levels [][][HashSize]byte, idx uint64) ([]ProofStep, error) {
	var steps []ProofStep
	for level := 0; level < len(levels)-1; level++ {
		nodes := levels[level]
		if idx >= uint64(len(nodes)) {
			return nil, fmt.Errorf("pqclaimlog: leaf index %d out of range at level %d", idx, level)
		}
		var sibling [HashSize]byte
		var side Side
		if idx%2 == 0 {
			side = Right
			if idx+1 < uint64(len(nodes)) {
				sibling = nodes[idx+1]
			} else {
				sibling = nodes[idx] // duplicated lone leaf
			}
		} else {
			side = Left
			sibling = nodes[idx-1]
		}
		steps = append(steps, ProofStep{Sibling: sibling, Side: side})
		idx /= 2
	}
	return steps, nil
}

// VerifyInclusionProof replays proof's hashing steps starting from
// leaf and reports whether the result equals expectedRoot (spec §4.6).
// It is a pure function: it touches no store.
func VerifyInclusionProof(leaf [HashSize]byte, proof InclusionProof, expectedRoot [HashSize]byte) bool {
	cur := leaf
	for _, step := range proof.Steps {
		switch step.Side {
		case Left:
			cur = merkleParent(step.Sibling, cur)
		case Right:
			cur = merkleParent(cur, step.Sibling)
		default:
			return false
		}
	}
	return constantTimeEqual(cur[:], expectedRoot[:])
}
