package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/blockberries/stakeberry/protocol"
)

// WitnessKey is the on-disk keypair a producing node signs blocks with.
type WitnessKey struct {
	PrivKey string `json:"priv_key"`
	PubKey  string `json:"pub_key"`
}

// generateWitnessKey creates a fresh Ed25519 keypair and writes it to
// path with owner-only permissions.
func generateWitnessKey(path string) (protocol.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	key := WitnessKey{
		PrivKey: hex.EncodeToString(priv),
		PubKey:  hex.EncodeToString(pub),
	}
	data, err := json.MarshalIndent(&key, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return protocol.PublicKey(pub), nil
}

// loadWitnessKey reads a keypair written by generateWitnessKey.
func loadWitnessKey(path string) (protocol.PublicKey, ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading key file: %w", err)
	}
	var key WitnessKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, nil, fmt.Errorf("parsing key file: %w", err)
	}
	priv, err := hex.DecodeString(key.PrivKey)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("key file %s holds an invalid private key", path)
	}
	pub, err := hex.DecodeString(key.PubKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("key file %s holds an invalid public key", path)
	}
	return protocol.PublicKey(pub), ed25519.PrivateKey(priv), nil
}
