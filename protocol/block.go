package protocol

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/stakeberry/types"
)

// BlockID identifies a block. The first four bytes carry the block
// number big-endian, so the number can be read back without fetching
// the block.
type BlockID = types.Hash

// BlockNumFromID extracts the block number embedded in an identifier.
func BlockNumFromID(id BlockID) uint32 {
	if len(id) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(id[:4])
}

// RefBlockPrefixFromID extracts the TaPoS prefix: the four bytes
// following the embedded number.
func RefBlockPrefixFromID(id BlockID) uint32 {
	if len(id) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint32(id[4:8])
}

// BlockHeader links a block into the chain.
type BlockHeader struct {
	Previous     BlockID           `json:"previous"`
	Timestamp    types.TimeSec     `json:"timestamp"`
	Witness      types.AccountName `json:"witness"`
	TxMerkleRoot types.Hash        `json:"tx_merkle_root"`
}

type headerWire struct {
	Previous     []byte `json:"previous"`
	Timestamp    int64  `json:"timestamp"`
	Witness      string `json:"witness"`
	TxMerkleRoot []byte `json:"tx_merkle_root"`
}

func (h *BlockHeader) wire() headerWire {
	return headerWire{
		Previous:     h.Previous,
		Timestamp:    h.Timestamp.Unix(),
		Witness:      h.Witness.String(),
		TxMerkleRoot: h.TxMerkleRoot,
	}
}

func (h *BlockHeader) fromWire(w headerWire) {
	h.Previous = w.Previous
	h.Timestamp = types.TimeFromUnix(w.Timestamp)
	h.Witness = types.AccountName(w.Witness)
	h.TxMerkleRoot = w.TxMerkleRoot
}

// MarshalCramberry encodes the bare header.
func (h *BlockHeader) MarshalCramberry() ([]byte, error) {
	w := h.wire()
	return cramberry.Marshal(&w)
}

// BlockNum returns this block's height, one past the previous block.
func (h *BlockHeader) BlockNum() uint32 {
	return BlockNumFromID(h.Previous) + 1
}

// BlockID computes the identifier: the header hash with the block
// number spliced into the leading four bytes.
func (h *BlockHeader) BlockID() (BlockID, error) {
	data, err := h.MarshalCramberry()
	if err != nil {
		return nil, err
	}
	id := types.HashBytes(data)
	binary.BigEndian.PutUint32(id[:4], h.BlockNum())
	return id, nil
}

// SigDigest returns the digest the producing witness signs.
func (h *BlockHeader) SigDigest(chainID types.Hash) (types.Hash, error) {
	data, err := h.MarshalCramberry()
	if err != nil {
		return nil, err
	}
	return types.HashConcat(chainID, types.HashBytes(data)), nil
}

// SignedBlock is a header, the witness signature over it, and the
// block's transactions.
type SignedBlock struct {
	BlockHeader
	WitnessSignature Signature
	Transactions     []SignedTransaction
}

type blockWire struct {
	Header           headerWire `json:"header"`
	WitnessSignature Signature  `json:"witness_signature"`
	Transactions     [][]byte   `json:"transactions"`
}

// MarshalCramberry encodes the full block.
func (b *SignedBlock) MarshalCramberry() ([]byte, error) {
	w := blockWire{
		Header:           b.BlockHeader.wire(),
		WitnessSignature: b.WitnessSignature,
	}
	for _, tx := range b.Transactions {
		raw, err := tx.MarshalCramberry()
		if err != nil {
			return nil, err
		}
		w.Transactions = append(w.Transactions, raw)
	}
	return cramberry.Marshal(&w)
}

// UnmarshalCramberry decodes the full block.
func (b *SignedBlock) UnmarshalCramberry(data []byte) error {
	var w blockWire
	if err := cramberry.Unmarshal(data, &w); err != nil {
		return err
	}
	b.BlockHeader.fromWire(w.Header)
	b.WitnessSignature = w.WitnessSignature
	b.Transactions = b.Transactions[:0]
	for _, raw := range w.Transactions {
		var tx SignedTransaction
		if err := tx.UnmarshalCramberry(raw); err != nil {
			return err
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return nil
}

// Sign sets the witness signature.
func (b *SignedBlock) Sign(priv ed25519.PrivateKey, chainID types.Hash) error {
	digest, err := b.SigDigest(chainID)
	if err != nil {
		return err
	}
	b.WitnessSignature = Sign(priv, digest)
	return nil
}

// VerifySignature checks the witness signature against the expected
// signing key.
func (b *SignedBlock) VerifySignature(key PublicKey, chainID types.Hash) (bool, error) {
	digest, err := b.SigDigest(chainID)
	if err != nil {
		return false, err
	}
	return b.WitnessSignature.Key.Equal(key) && b.WitnessSignature.Verify(digest), nil
}

// MerkleRoot computes the merkle root over the block's transaction
// digests.
func (b *SignedBlock) MerkleRoot() (types.Hash, error) {
	leaves := make([]types.Hash, 0, len(b.Transactions))
	for i := range b.Transactions {
		d, err := b.Transactions[i].Digest()
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, d)
	}
	return MerkleRoot(leaves), nil
}
