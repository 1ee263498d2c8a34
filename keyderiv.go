package pqclaimlog

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// epochInfoPrefix namespaces the HKDF info parameter so epoch seeds can
// never collide with seeds derived for another purpose from the same
// master seed.
const epochInfoPrefix = "pq-log/epoch/"

// DeriveEpochSeed derives the 32-byte seed for epochID from masterSeed
// using HKDF-SHA256 (spec §4.2). The derivation is memoryless: equal
// inputs always produce the equal output, on any host, in any process.
func DeriveEpochSeed(masterSeed [SeedSize]byte, epochID string) [SeedSize]byte {
	info := append([]byte(epochInfoPrefix), epochID...)
	r := hkdf.New(sha256.New, masterSeed[:], nil, info)

	var out [SeedSize]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// hkdf.New with SHA-256 can produce up to 255*32 bytes; reading
		// 32 can only fail if the reader itself is broken.
		panic("pqclaimlog: hkdf read failed: " + err.Error())
	}
	return out
}

// DeriveEpochKeypair derives the deterministic signing keypair for
// epochID from masterSeed. It is the composition DeriveEpochSeed then
// DeriveKeypair described in spec §4.2.
func DeriveEpochKeypair(masterSeed [SeedSize]byte, epochID string) (pub, priv []byte) {
	seed := DeriveEpochSeed(masterSeed, epochID)
	return DeriveKeypair(seed)
}
