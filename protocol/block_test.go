package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/types"
)

func TestBlockIDEmbedsNumber(t *testing.T) {
	prev := make(types.Hash, types.HashSize)
	prev[3] = 41 // block 41

	h := BlockHeader{
		Previous:  prev,
		Timestamp: types.TimeFromUnix(1_700_000_000),
		Witness:   "initminer",
	}
	require.Equal(t, uint32(42), h.BlockNum())

	id, err := h.BlockID()
	require.NoError(t, err)
	require.Len(t, id, types.HashSize)
	require.Equal(t, uint32(42), BlockNumFromID(id))
}

func TestBlockSignVerify(t *testing.T) {
	pub, priv := seedKey(5)
	b := &SignedBlock{
		BlockHeader: BlockHeader{
			Previous:  make(types.Hash, types.HashSize),
			Timestamp: types.TimeFromUnix(1_700_000_003),
			Witness:   "initminer",
		},
	}
	require.NoError(t, b.Sign(priv, testChainID))

	ok, err := b.VerifySignature(pub, testChainID)
	require.NoError(t, err)
	require.True(t, ok)

	otherPub, _ := seedKey(6)
	ok, err = b.VerifySignature(otherPub, testChainID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBlockRoundTripAndMerkle(t *testing.T) {
	_, priv := seedKey(7)
	tx := testTransferTx()
	require.NoError(t, tx.Sign(priv, testChainID))

	b := &SignedBlock{
		BlockHeader: BlockHeader{
			Previous:  make(types.Hash, types.HashSize),
			Timestamp: types.TimeFromUnix(1_700_000_003),
			Witness:   "initminer",
		},
		Transactions: []SignedTransaction{*tx},
	}
	root, err := b.MerkleRoot()
	require.NoError(t, err)
	b.TxMerkleRoot = root
	require.NoError(t, b.Sign(priv, testChainID))

	data, err := b.MarshalCramberry()
	require.NoError(t, err)

	var got SignedBlock
	require.NoError(t, got.UnmarshalCramberry(data))
	require.Equal(t, b.Witness, got.Witness)
	require.Len(t, got.Transactions, 1)

	gotRoot, err := got.MerkleRoot()
	require.NoError(t, err)
	require.True(t, root.Equal(gotRoot))

	id1, err := b.BlockID()
	require.NoError(t, err)
	id2, err := got.BlockID()
	require.NoError(t, err)
	require.True(t, id1.Equal(id2))
}
