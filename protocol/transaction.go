package protocol

import (
	"crypto/ed25519"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/stakeberry/types"
)

// MaxTransactionSize bounds the encoded size of a single transaction.
const MaxTransactionSize = 1 << 16

// Transaction is an ordered list of operations with a TaPoS reference
// and an expiration time.
type Transaction struct {
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Expiration     types.TimeSec
	Operations     []Operation
}

// txWire is the canonical encoding envelope. Operations travel as
// tag-prefixed payloads so the sum type round-trips.
type txWire struct {
	RefBlockNum    uint16   `json:"ref_block_num"`
	RefBlockPrefix uint32   `json:"ref_block_prefix"`
	Expiration     int64    `json:"expiration"`
	Operations     [][]byte `json:"operations"`
}

func (tx *Transaction) wire() (txWire, error) {
	w := txWire{
		RefBlockNum:    tx.RefBlockNum,
		RefBlockPrefix: tx.RefBlockPrefix,
		Expiration:     tx.Expiration.Unix(),
	}
	for _, op := range tx.Operations {
		raw, err := MarshalOperation(op)
		if err != nil {
			return txWire{}, err
		}
		w.Operations = append(w.Operations, raw)
	}
	return w, nil
}

func (tx *Transaction) fromWire(w txWire) error {
	tx.RefBlockNum = w.RefBlockNum
	tx.RefBlockPrefix = w.RefBlockPrefix
	tx.Expiration = types.TimeFromUnix(w.Expiration)
	tx.Operations = tx.Operations[:0]
	for _, raw := range w.Operations {
		op, err := UnmarshalOperation(raw)
		if err != nil {
			return err
		}
		tx.Operations = append(tx.Operations, op)
	}
	return nil
}

// MarshalCramberry encodes the unsigned transaction.
func (tx *Transaction) MarshalCramberry() ([]byte, error) {
	w, err := tx.wire()
	if err != nil {
		return nil, err
	}
	return cramberry.Marshal(&w)
}

// UnmarshalCramberry decodes the unsigned transaction.
func (tx *Transaction) UnmarshalCramberry(data []byte) error {
	var w txWire
	if err := cramberry.Unmarshal(data, &w); err != nil {
		return err
	}
	return tx.fromWire(w)
}

// Validate performs the stateless checks: at least one operation and
// every operation valid and non-virtual.
func (tx *Transaction) Validate() error {
	if len(tx.Operations) == 0 {
		return types.Validationf("transaction has no operations")
	}
	for i, op := range tx.Operations {
		if op.Type().IsVirtual() {
			return types.Validationf("operation %d (%s) is virtual", i, op.Type())
		}
		if err := op.Validate(); err != nil {
			return types.WithOp(op.Type().String(), err)
		}
	}
	return nil
}

// ID returns the transaction identifier: the hash of the unsigned
// encoding.
func (tx *Transaction) ID() (types.Hash, error) {
	data, err := tx.MarshalCramberry()
	if err != nil {
		return nil, err
	}
	return types.HashBytes(data), nil
}

// SigDigest returns the digest a signature must cover: chain ID
// prefix plus the unsigned encoding. The chain ID binds signatures to
// one network.
func (tx *Transaction) SigDigest(chainID types.Hash) (types.Hash, error) {
	data, err := tx.MarshalCramberry()
	if err != nil {
		return nil, err
	}
	return types.HashConcat(chainID, types.HashBytes(data)), nil
}

// RequiredAuthorities collects the authority demands of every
// operation.
func (tx *Transaction) RequiredAuthorities() RequiredAuthorities {
	var req RequiredAuthorities
	for _, op := range tx.Operations {
		op.RequiredAuthorities(&req)
	}
	return req
}

// SignedTransaction is a transaction plus its signatures.
type SignedTransaction struct {
	Transaction
	Signatures []Signature
}

type signedTxWire struct {
	Tx         txWire      `json:"tx"`
	Signatures []Signature `json:"signatures"`
}

// MarshalCramberry encodes the signed transaction.
func (stx *SignedTransaction) MarshalCramberry() ([]byte, error) {
	w, err := stx.wire()
	if err != nil {
		return nil, err
	}
	return cramberry.Marshal(&signedTxWire{Tx: w, Signatures: stx.Signatures})
}

// UnmarshalCramberry decodes the signed transaction.
func (stx *SignedTransaction) UnmarshalCramberry(data []byte) error {
	var w signedTxWire
	if err := cramberry.Unmarshal(data, &w); err != nil {
		return err
	}
	stx.Signatures = w.Signatures
	return stx.fromWire(w.Tx)
}

// Sign appends a signature by priv over the chain-bound digest.
func (stx *SignedTransaction) Sign(priv ed25519.PrivateKey, chainID types.Hash) error {
	digest, err := stx.SigDigest(chainID)
	if err != nil {
		return err
	}
	stx.Signatures = append(stx.Signatures, Sign(priv, digest))
	return nil
}

// SignedKeys verifies every signature and returns the distinct keys
// that signed. A bad or duplicate signature fails the whole
// transaction.
func (stx *SignedTransaction) SignedKeys(chainID types.Hash) ([]PublicKey, error) {
	digest, err := stx.SigDigest(chainID)
	if err != nil {
		return nil, err
	}
	keys := make([]PublicKey, 0, len(stx.Signatures))
	for i, sig := range stx.Signatures {
		if !sig.Verify(digest) {
			return nil, types.Validationf("signature %d invalid", i)
		}
		for _, k := range keys {
			if k.Equal(sig.Key) {
				return nil, types.Validationf("duplicate signature by %s", sig.Key)
			}
		}
		keys = append(keys, sig.Key)
	}
	return keys, nil
}

// VerifyAuthority checks that the signing keys satisfy every authority
// the transaction's operations demand. An owner authority also
// satisfies an active requirement.
func (stx *SignedTransaction) VerifyAuthority(
	chainID types.Hash,
	getOwner, getActive AuthorityGetter,
) error {
	keys, err := stx.SignedKeys(chainID)
	if err != nil {
		return err
	}
	req := stx.RequiredAuthorities()

	for _, name := range req.Owner {
		owner, err := getOwner(name)
		if err != nil {
			return fmt.Errorf("owner authority of %s: %w", name, err)
		}
		if !owner.Satisfied(keys, getActive) {
			return types.Validationf("missing owner authority of %s", name)
		}
	}
	for _, name := range req.Active {
		active, err := getActive(name)
		if err != nil {
			return fmt.Errorf("active authority of %s: %w", name, err)
		}
		if active.Satisfied(keys, getActive) {
			continue
		}
		owner, err := getOwner(name)
		if err != nil {
			return fmt.Errorf("owner authority of %s: %w", name, err)
		}
		if !owner.Satisfied(keys, getActive) {
			return types.Validationf("missing active authority of %s", name)
		}
	}
	return nil
}

// Digest returns the hash of the full signed encoding; block merkle
// trees are built over these.
func (stx *SignedTransaction) Digest() (types.Hash, error) {
	data, err := stx.MarshalCramberry()
	if err != nil {
		return nil, err
	}
	return types.HashBytes(data), nil
}
