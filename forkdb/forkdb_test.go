package forkdb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/forkdb"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

func makeBlock(t *testing.T, prev *protocol.SignedBlock, witness types.AccountName, ts int64) *protocol.SignedBlock {
	t.Helper()
	b := &protocol.SignedBlock{}
	b.Timestamp = types.TimeFromUnix(ts)
	b.Witness = witness
	if prev == nil {
		b.Previous = make(protocol.BlockID, types.HashSize)
	} else {
		id, err := prev.BlockID()
		require.NoError(t, err)
		b.Previous = id
	}
	return b
}

func blockID(t *testing.T, b *protocol.SignedBlock) protocol.BlockID {
	t.Helper()
	id, err := b.BlockID()
	require.NoError(t, err)
	return id
}

func TestPushAndHead(t *testing.T) {
	db := forkdb.New()

	g := makeBlock(t, nil, "initminer", 0)
	_, err := db.Start(g)
	require.NoError(t, err)

	b1 := makeBlock(t, g, "initminer", 3)
	item, err := db.PushBlock(b1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), item.Num)
	require.Equal(t, item, db.Head())

	orphan := makeBlock(t, b1, "alice", 6)
	orphan.Previous = protocol.BlockID(types.HashBytes([]byte("nowhere")))
	_, err = db.PushBlock(orphan)
	require.ErrorIs(t, err, forkdb.ErrUnlinkable)
}

func TestBranchSwitch(t *testing.T) {
	db := forkdb.New()

	g := makeBlock(t, nil, "initminer", 0)
	_, err := db.Start(g)
	require.NoError(t, err)

	// Branch A: two blocks. Branch B: three blocks from the same root.
	a1 := makeBlock(t, g, "alice", 3)
	a2 := makeBlock(t, a1, "alice", 6)
	b1 := makeBlock(t, g, "bob", 4)
	b2 := makeBlock(t, b1, "bob", 7)
	b3 := makeBlock(t, b2, "bob", 10)

	for _, b := range []*protocol.SignedBlock{a1, a2, b1, b2} {
		_, err := db.PushBlock(b)
		require.NoError(t, err)
	}
	require.Equal(t, blockID(t, a2), db.Head().ID)

	// The longer branch wins once it outgrows the current head.
	_, err = db.PushBlock(b3)
	require.NoError(t, err)
	require.Equal(t, blockID(t, b3), db.Head().ID)

	branchNew, branchOld, err := db.FetchBranchFrom(blockID(t, b3), blockID(t, a2))
	require.NoError(t, err)
	require.Len(t, branchNew, 3)
	require.Len(t, branchOld, 2)
	require.Equal(t, blockID(t, b3), branchNew[0].ID)
	require.Equal(t, blockID(t, b1), branchNew[2].ID)
	require.Equal(t, blockID(t, a2), branchOld[0].ID)
}

func TestPopAndPrune(t *testing.T) {
	db := forkdb.New()

	g := makeBlock(t, nil, "initminer", 0)
	_, err := db.Start(g)
	require.NoError(t, err)
	b1 := makeBlock(t, g, "initminer", 3)
	b2 := makeBlock(t, b1, "initminer", 6)
	_, err = db.PushBlock(b1)
	require.NoError(t, err)
	_, err = db.PushBlock(b2)
	require.NoError(t, err)

	parent, err := db.PopBlock()
	require.NoError(t, err)
	require.Equal(t, blockID(t, b1), parent.ID)
	_, ok := db.Fetch(blockID(t, b2))
	require.False(t, ok)

	db.Prune(1)
	_, ok = db.Fetch(blockID(t, g))
	require.False(t, ok)
	_, ok = db.Fetch(blockID(t, b1))
	require.True(t, ok)

	// Blocks below the pruned boundary no longer link.
	stale := makeBlock(t, g, "alice", 3)
	_, err = db.PushBlock(stale)
	require.ErrorIs(t, err, forkdb.ErrUnlinkable)
}
