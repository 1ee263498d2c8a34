// Command pqclaimlogctl is a local operator tool over a pqclaimlog
// SQLite store: submit events, cut checkpoints, audit the chain, and
// inspect Merkle trees and inclusion proofs. It has no network
// surface; it is the thin, testable body the collaborator contract in
// the claim-log design calls for, not a replacement for one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/karasz/pqclaimlog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := pqclaimlog.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pqclaimlogctl:", err)
		os.Exit(1)
	}

	store, err := pqclaimlog.OpenSQLiteStore(cfg.DSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pqclaimlogctl: open store:", err)
		os.Exit(1)
	}
	defer func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	keys := pqclaimlog.NewEpochManager(cfg.MasterSeed, store, nil)
	logg := pqclaimlog.NewLog(store, keys)
	cps := pqclaimlog.NewCheckpointEngine(store, logg, keys)
	verifier := pqclaimlog.NewVerifier(logg, store, keys)

	var cmdErr error
	switch os.Args[1] {
	case "submit":
		cmdErr = runSubmit(logg, os.Args[2:])
	case "score":
		cmdErr = runScore(logg, os.Args[2:])
	case "checkpoint":
		cmdErr = runCheckpoint(cps, os.Args[2:])
	case "audit":
		cmdErr = runAudit(verifier, os.Args[2:])
	case "tree":
		cmdErr = runTree(cps, os.Args[2:])
	case "proof":
		cmdErr = runProof(logg, cps, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, "pqclaimlogctl:", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pqclaimlogctl <command> [flags]

commands:
  submit     append a claim event
  score      append a model-score event
  checkpoint generate a checkpoint over unsealed entries
  audit      run full chain and checkpoint verification
  tree       print the Merkle levels over a range
  proof      print an inclusion proof for one entry`)
}

func runSubmit(logg *pqclaimlog.Log, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	claimID := fs.String("claim", "", "claim id")
	eventType := fs.String("event", "", "event type")
	payload := fs.String("payload", "{}", "JSON payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var data any
	if err := json.Unmarshal([]byte(*payload), &data); err != nil {
		return fmt.Errorf("invalid --payload: %w", err)
	}
	corrID := uuid.Must(uuid.NewV7()).String()
	id, err := logg.Append(*claimID, *eventType, data)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"id": id, "correlation_id": corrID})
}

func runScore(logg *pqclaimlog.Log, args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	claimID := fs.String("claim", "", "claim id")
	score := fs.Float64("score", 0, "model score")
	modelVersion := fs.String("model-version", "", "model version tag")
	featureHash := fs.String("feature-hash", "", "hex digest of the feature vector")
	if err := fs.Parse(args); err != nil {
		return err
	}
	payload := map[string]any{
		"score":         *score,
		"model_version": *modelVersion,
		"feature_hash":  *featureHash,
	}
	id, err := logg.Append(*claimID, "score", payload)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"id": id})
}

func runCheckpoint(cps *pqclaimlog.CheckpointEngine, args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	rangeHi := fs.Uint64("range-hi", 0, "seal through this entry id instead of the current tail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var hiPtr *uint64
	if *rangeHi != 0 {
		hiPtr = rangeHi
	}
	cp, err := cps.Generate(hiPtr)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"id":          cp.ID,
		"merkle_root": fmt.Sprintf("%x", cp.MerkleRoot),
		"range_lo":    cp.RangeLo,
		"range_hi":    cp.RangeHi,
		"signer":      cp.SignerEpochID,
	})
}

func runAudit(verifier *pqclaimlog.Verifier, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "also print the id of the first tampered entry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	report, err := verifier.FullVerification(context.Background())
	if err != nil {
		return err
	}
	out := map[string]any{
		"chain_ok":       report.ChainOK,
		"checkpoints_ok": report.CheckpointsOK,
		"ok":             report.OK(),
	}
	if report.ChainError != nil {
		out["chain_error"] = report.ChainError.Error()
	}
	if report.CheckpointFault != nil {
		out["checkpoint_fault"] = report.CheckpointFault.Error()
		out["fault_checkpoint_id"] = report.FaultCheckpointID
	}
	if *verbose {
		var tr pqclaimlog.TamperReport
		if errors.As(report.ChainError, &tr) {
			out["first_bad_id"] = tr.FirstBadID
		}
	}
	return printJSON(out)
}

func runTree(cps *pqclaimlog.CheckpointEngine, args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	lo := fs.Uint64("lo", 1, "range start")
	hi := fs.Uint64("hi", 0, "range end")
	if err := fs.Parse(args); err != nil {
		return err
	}
	levels, err := cps.ListLevels(*lo, *hi)
	if err != nil {
		return err
	}
	hexLevels := make([][]string, len(levels))
	for i, level := range levels {
		row := make([]string, len(level))
		for j, node := range level {
			row[j] = fmt.Sprintf("%x", node)
		}
		hexLevels[i] = row
	}
	return printJSON(map[string]any{"levels": hexLevels})
}

func runProof(logg *pqclaimlog.Log, cps *pqclaimlog.CheckpointEngine, args []string) error {
	fs := flag.NewFlagSet("proof", flag.ExitOnError)
	entryID := fs.Uint64("entry", 0, "entry id to prove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	proof, err := cps.InclusionProof(*entryID)
	if err != nil {
		return err
	}
	entry, err := logg.Get(*entryID)
	if err != nil {
		return err
	}
	steps := make([]map[string]any, len(proof.Steps))
	for i, step := range proof.Steps {
		side := "left"
		if step.Side == pqclaimlog.Right {
			side = "right"
		}
		steps[i] = map[string]any{"sibling": fmt.Sprintf("%x", step.Sibling), "side": side}
	}
	return printJSON(map[string]any{
		"checkpoint_id": proof.CheckpointID,
		"leaf":          fmt.Sprintf("%x", entry.PrevHash),
		"steps":         steps,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
