package pqclaimlog

// Example: Epoch Keys and the Append/Checkpoint/Verify Cycle
//
// This example sketches the lifecycle a claims system drives this
// package through.
//
// Security properties:
//  1. Forward security: once an epoch is retired, its private key is
//     never re-derived for signing again — only GetOrCreatePublicKey
//     and VerifyWithEpoch still work for it.
//  2. Tamper evidence: any edit to a past entry's payload or timestamp
//     makes its stored chain hash disagree with the recomputed one, and
//     VerifyChain reports the first broken link. claim_id and
//     event_type are not part of the chain hash.
//  3. Checkpoint integrity: a checkpoint's Merkle root is signed under
//     the epoch current at the time it was generated, so forging a
//     checkpoint after the epoch is retired requires the retired
//     private key, which EpochManager refuses to derive for signing.
//
// Usage:
//
//	store := NewMemoryStore()
//	keys := NewEpochManager(masterSeed, store, nil)
//	log := NewLog(store, keys)
//	cps := NewCheckpointEngine(store, log, keys)
//	verifier := NewVerifier(log, store, keys)
//
//	id, _ := log.Append("claim-123", "submitted", map[string]any{"amount": 500})
//	log.Append("claim-123", "adjuster_assigned", map[string]any{"adjuster": "a.lee"})
//
//	cp, _ := cps.Generate(nil)
//	proof, _ := cps.InclusionProof(id)
//	entry, _ := log.Get(id)
//	ok := VerifyInclusionProof(entry.PrevHash, proof, cp.MerkleRoot)
//
//	report, _ := verifier.FullVerification(context.Background())
//	if !report.OK() {
//	    // report.ChainError or report.CheckpointFault names the failure
//	}
//
// Retiring an epoch once its successor is established:
//
//	keys.Retire("2026-08-01")
//	_, err := keys.SignWithEpoch("2026-08-01", someRoot) // returns ErrEpochRetired
