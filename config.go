package pqclaimlog

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
)

// ErrMissingMasterSeed is returned when PQCLAIMLOG_MASTER_SEED is
// unset outside of development mode (spec §6).
var ErrMissingMasterSeed = errors.New("pqclaimlog: PQCLAIMLOG_MASTER_SEED not set")

// Config holds the deployment knobs read from the environment.
type Config struct {
	MasterSeed [SeedSize]byte
	DSN        string
	DevMode    bool
}

// LoadConfig reads Config from the environment (spec §6):
//
//	PQCLAIMLOG_MASTER_SEED  64 hex chars (32 bytes), required in
//	                        production
//	PQCLAIMLOG_DSN          sqlite DSN, defaults to "pqclaimlog.db"
//	PQCLAIMLOG_DEV          "1" to allow a missing seed, in which case
//	                        one is generated and logged loudly — never
//	                        for production use, since the data becomes
//	                        unverifiable the moment the process exits
func LoadConfig() (Config, error) {
	cfg := Config{
		DSN:     os.Getenv("PQCLAIMLOG_DSN"),
		DevMode: os.Getenv("PQCLAIMLOG_DEV") == "1",
	}
	if cfg.DSN == "" {
		cfg.DSN = "pqclaimlog.db"
	}

	seedHex := os.Getenv("PQCLAIMLOG_MASTER_SEED")
	switch {
	case seedHex != "":
		seed, err := decodeSeed(seedHex)
		if err != nil {
			return Config{}, fmt.Errorf("pqclaimlog: PQCLAIMLOG_MASTER_SEED: %w", err)
		}
		cfg.MasterSeed = seed
	case cfg.DevMode:
		seed, err := randomSeed()
		if err != nil {
			return Config{}, err
		}
		cfg.MasterSeed = seed
		log.Printf("pqclaimlog: PQCLAIMLOG_MASTER_SEED not set, generated an ephemeral development seed %x — entries signed this run will not verify after restart", seed)
	default:
		return Config{}, ErrMissingMasterSeed
	}

	return cfg, nil
}

func decodeSeed(s string) ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) != SeedSize {
		return seed, fmt.Errorf("want %d bytes, got %d", SeedSize, len(raw))
	}
	copy(seed[:], raw)
	return seed, nil
}

func randomSeed() ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("pqclaimlog: generate development seed: %w", err)
	}
	return seed, nil
}
