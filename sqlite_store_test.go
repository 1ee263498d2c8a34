package pqclaimlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "pqclaimlog-sqlite-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	store, err := OpenSQLiteStore(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	return store
}

func TestSQLiteStoreAppendEntryAndRange(t *testing.T) {
	store := openTestSQLiteStore(t)
	keys := NewEpochManager(testMasterSeed(), store, nil)
	logg := NewLog(store, keys)

	for i := 0; i < 10; i++ {
		if _, err := logg.Append("claim-1", "event", i); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := logg.Range(1, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("len(entries) = %d, want 10", len(entries))
	}
	for i, e := range entries {
		if e.ID != uint64(i+1) {
			t.Fatalf("entries[%d].ID = %d, want %d", i, e.ID, i+1)
		}
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pqclaimlog-sqlite-reopen-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := OpenSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	keys := NewEpochManager(testMasterSeed(), store, nil)
	logg := NewLog(store, keys)
	if _, err := logg.Append("claim-1", "submitted", map[string]any{"amount": 10}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := keys.Retire("never-used"); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	reopened, err := OpenSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteStore (reopen): %v", err)
	}
	t.Cleanup(func() {
		if closer, ok := reopened.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	last, ok, err := reopened.LastEntry()
	if err != nil {
		t.Fatalf("LastEntry: %v", err)
	}
	if !ok || last.ID != 1 {
		t.Fatalf("LastEntry after reopen = %+v, ok=%v", last, ok)
	}

	rec, ok, err := reopened.GetEpoch("never-used")
	if err != nil {
		t.Fatalf("GetEpoch: %v", err)
	}
	if !ok || !rec.Retired {
		t.Fatalf("epoch retirement did not persist across reopen: %+v ok=%v", rec, ok)
	}
}

func TestSQLiteStoreCheckpointAndVerifyEndToEnd(t *testing.T) {
	store := openTestSQLiteStore(t)
	keys := NewEpochManager(testMasterSeed(), store, nil)
	logg := NewLog(store, keys)
	cps := NewCheckpointEngine(store, logg, keys)
	verifier := NewVerifier(logg, store, keys)

	for i := 0; i < 7; i++ {
		if _, err := logg.Append("claim-1", "event", i); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := cps.Generate(nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	report, err := verifier.FullVerification(context.Background())
	if err != nil {
		t.Fatalf("FullVerification: %v", err)
	}
	if !report.OK() {
		t.Fatalf("FullVerification = %+v, want OK", report)
	}
}

func TestSQLiteStoreGetEntryNotFound(t *testing.T) {
	store := openTestSQLiteStore(t)
	if _, err := store.GetEntry(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetEntry on empty store: got %v, want ErrNotFound", err)
	}
}
