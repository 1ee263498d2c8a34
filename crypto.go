package pqclaimlog

import (
	"crypto/subtle"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium"
	"golang.org/x/crypto/sha3"
)

// scheme is the module-lattice signature used for every epoch keypair.
// Mode3 is the NIST level-3 parameter set (the ML-DSA-65 / Dilithium3
// class named in spec §1).
var scheme = dilithium.Mode3

const (
	// SeedSize is the length in bytes of a deterministic keygen seed.
	SeedSize = 32
	// HashSize is the length in bytes of a SHA3-256 digest.
	HashSize = 32
)

// PublicKeySize, PrivateKeySize and SignatureSize describe the wire
// lengths of the chosen post-quantum scheme.
var (
	PublicKeySize  = scheme.PublicKeySize()
	PrivateKeySize = scheme.PrivateKeySize()
	SignatureSize  = scheme.SignatureSize()
)

// Hash computes the SHA3-256 digest of data.
func Hash(data ...[]byte) [HashSize]byte {
	h := sha3.New256()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GenesisHash is the constant "previous hash" for the first log entry
// (spec §3, §4.4).
var GenesisHash = Hash([]byte("GENESIS"))

// DeriveKeypair deterministically derives a signing keypair from a
// 32-byte seed. Equal seeds always yield equal keys, on any host — this
// is the property spec §9 calls out as an open risk in the original
// repo and requires here by construction, since circl's Dilithium
// implementation exposes seeded keygen directly.
func DeriveKeypair(seed [SeedSize]byte) (pub []byte, priv []byte) {
	pk, sk := scheme.NewKeyFromSeed(seed[:])
	return pk.Bytes(), sk.Bytes()
}

// Sign signs message under priv, the raw private-key bytes produced by
// DeriveKeypair.
func Sign(message []byte, priv []byte) ([]byte, error) {
	sk, err := unpackPrivate(priv)
	if err != nil {
		return nil, err
	}
	return scheme.Sign(sk, message), nil
}

// Verify reports whether sig is a valid signature over message under
// the raw public-key bytes produced by DeriveKeypair.
func Verify(message, sig, pub []byte) bool {
	pk, err := unpackPublic(pub)
	if err != nil {
		return false
	}
	return scheme.Verify(pk, message, sig)
}

func unpackPublic(pub []byte) (dilithium.PublicKey, error) {
	if len(pub) != PublicKeySize {
		return nil, fmt.Errorf("pqclaimlog: public key must be %d bytes, got %d", PublicKeySize, len(pub))
	}
	return scheme.PublicKeyFromBytes(pub), nil
}

func unpackPrivate(priv []byte) (dilithium.PrivateKey, error) {
	if len(priv) != PrivateKeySize {
		return nil, fmt.Errorf("pqclaimlog: private key must be %d bytes, got %d", PrivateKeySize, len(priv))
	}
	return scheme.PrivateKeyFromBytes(priv), nil
}

// zero overwrites priv in place. Callers must not retain priv after
// signing; private key material is never persisted (spec §3).
func zero(priv []byte) {
	for i := range priv {
		priv[i] = 0
	}
}

// constantTimeEqual performs constant-time comparison of two byte
// slices, used to compare recomputed hashes against stored ones
// without leaking timing information about where they first differ.
func constantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
