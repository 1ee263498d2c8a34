package pqclaimlog

import (
	"bytes"
	"testing"
)

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		name string
		a    []byte
		b    []byte
		want bool
	}{
		{name: "equal slices", a: []byte{1, 2, 3, 4}, b: []byte{1, 2, 3, 4}, want: true},
		{name: "different slices", a: []byte{1, 2, 3, 4}, b: []byte{1, 2, 3, 5}, want: false},
		{name: "different lengths", a: []byte{1, 2, 3}, b: []byte{1, 2, 3, 4}, want: false},
		{name: "empty slices", a: []byte{}, b: []byte{}, want: true},
		{name: "one empty", a: []byte{1}, b: []byte{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := constantTimeEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("constantTimeEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("x"), []byte("y"))
	b := Hash([]byte("x"), []byte("y"))
	if a != b {
		t.Fatalf("Hash is not deterministic: %x != %x", a, b)
	}
	c := Hash([]byte("xy"))
	if a == c {
		t.Fatalf("Hash of split args collided with Hash of concatenated arg")
	}
}

func TestGenesisHashConstant(t *testing.T) {
	want := Hash([]byte("GENESIS"))
	if GenesisHash != want {
		t.Fatalf("GenesisHash = %x, want %x", GenesisHash, want)
	}
}

func TestDeriveKeypairDeterministic(t *testing.T) {
	var seed [SeedSize]byte
	copy(seed[:], []byte("all identical seed bytes padded"))

	pub1, priv1 := DeriveKeypair(seed)
	pub2, priv2 := DeriveKeypair(seed)
	if !bytes.Equal(pub1, pub2) {
		t.Fatalf("DeriveKeypair public key not deterministic")
	}
	if !bytes.Equal(priv1, priv2) {
		t.Fatalf("DeriveKeypair private key not deterministic")
	}

	var other [SeedSize]byte
	copy(other[:], []byte("a completely different seed here"))
	pub3, _ := DeriveKeypair(other)
	if bytes.Equal(pub1, pub3) {
		t.Fatalf("different seeds produced the same public key")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	var seed [SeedSize]byte
	copy(seed[:], []byte("signing round trip test seed!!!"))
	pub, priv := DeriveKeypair(seed)

	msg := []byte("checkpoint merkle root goes here")
	sig, err := Sign(msg, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(msg, sig, pub) {
		t.Fatalf("Verify rejected a valid signature")
	}
	if Verify([]byte("tampered message"), sig, pub) {
		t.Fatalf("Verify accepted a signature over a different message")
	}
}

func TestZeroWipesPrivateKey(t *testing.T) {
	var seed [SeedSize]byte
	copy(seed[:], []byte("zeroing test seed padded to 32b"))
	_, priv := DeriveKeypair(seed)
	zero(priv)
	for i, b := range priv {
		if b != 0 {
			t.Fatalf("zero left non-zero byte at offset %d", i)
		}
	}
}
