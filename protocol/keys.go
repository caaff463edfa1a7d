// Package protocol defines the wire-level chain protocol: operations,
// transactions, blocks, authorities and their canonical encoding and
// digests. Everything here is deterministic; the same value always
// encodes to the same bytes.
package protocol

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/blockberries/stakeberry/types"
)

// PublicKey is an ed25519 public key.
type PublicKey []byte

// PublicKeySize is the expected key length.
const PublicKeySize = ed25519.PublicKeySize

// String returns the key as hex.
func (k PublicKey) String() string {
	return hex.EncodeToString(k)
}

// IsValid reports whether the key has the right length.
func (k PublicKey) IsValid() bool {
	return len(k) == PublicKeySize
}

// Equal compares two keys.
func (k PublicKey) Equal(other PublicKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// PublicKeyFromHex parses a hex-encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(b))
	}
	return PublicKey(b), nil
}

// Signature is an ed25519 signature together with the key that made
// it. Carrying the key lets authority checks resolve signers without
// key recovery.
type Signature struct {
	Key PublicKey `json:"key"`
	Sig []byte    `json:"sig"`
}

// Verify checks the signature over digest.
func (s Signature) Verify(digest types.Hash) bool {
	if !s.Key.IsValid() || len(s.Sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(s.Key), digest, s.Sig)
}

// Sign produces a signature over digest with the given private key.
func Sign(priv ed25519.PrivateKey, digest types.Hash) Signature {
	return Signature{
		Key: PublicKey(priv.Public().(ed25519.PublicKey)),
		Sig: ed25519.Sign(priv, digest),
	}
}

// GenerateKey creates a fresh ed25519 keypair from crypto/rand.
func GenerateKey() (PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(pub), priv, nil
}

// KeyFromSeed derives a deterministic keypair from a 32-byte seed.
// Test fixtures and genesis tooling use it.
func KeyFromSeed(seed []byte) (PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(seed)
	return PublicKey(priv.Public().(ed25519.PublicKey)), priv
}
