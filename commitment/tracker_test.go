package commitment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

// buildChain returns n linked blocks signed by the given witness,
// starting at height 1.
func buildChain(t *testing.T, n int, witness types.AccountName) []*protocol.SignedBlock {
	t.Helper()
	prev := make(types.Hash, 32)
	blocks := make([]*protocol.SignedBlock, 0, n)
	for i := 0; i < n; i++ {
		b := &protocol.SignedBlock{BlockHeader: protocol.BlockHeader{
			Previous:  prev,
			Timestamp: types.TimeSec(1_600_000_000 + int64(i+1)*3),
			Witness:   witness,
		}}
		id, err := b.BlockID()
		require.NoError(t, err)
		blocks = append(blocks, b)
		prev = id
	}
	return blocks
}

func TestTrackerRecordsAndCommits(t *testing.T) {
	tr := NewMemory(100, nil)
	defer tr.Close()
	require.Equal(t, int64(0), tr.Version())

	blocks := buildChain(t, 3, "initminer")
	for _, b := range blocks {
		require.NoError(t, tr.RecordBlock(b))
	}
	require.NotEmpty(t, tr.RootHash())

	hash, version, err := tr.CommitThrough(3)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.Equal(t, int64(1), version)
	require.Equal(t, int64(1), tr.Version())

	want, err := blocks[1].BlockID()
	require.NoError(t, err)
	got, err := tr.BlockID(2)
	require.NoError(t, err)
	require.True(t, got.Equal(want))

	missing, err := tr.BlockID(9)
	require.NoError(t, err)
	require.True(t, missing.IsEmpty())
}

func TestTrackerRootsMatchAcrossNodes(t *testing.T) {
	a := NewMemory(100, nil)
	defer a.Close()
	b := NewMemory(100, nil)
	defer b.Close()

	for _, blk := range buildChain(t, 4, "initminer") {
		require.NoError(t, a.RecordBlock(blk))
		require.NoError(t, b.RecordBlock(blk))
	}
	require.Equal(t, a.RootHash(), b.RootHash())

	// A node that saw a different history disagrees on the root.
	c := NewMemory(100, nil)
	defer c.Close()
	for _, blk := range buildChain(t, 4, "alice") {
		require.NoError(t, c.RecordBlock(blk))
	}
	require.NotEqual(t, a.RootHash(), c.RootHash())
}

func TestTrackerReplacesForkedBlock(t *testing.T) {
	tr := NewMemory(100, nil)
	defer tr.Close()

	abandoned := buildChain(t, 2, "initminer")
	adopted := buildChain(t, 2, "alice")
	for _, blk := range abandoned {
		require.NoError(t, tr.RecordBlock(blk))
	}
	for _, blk := range adopted {
		require.NoError(t, tr.RecordBlock(blk))
	}

	// Only the adopted branch is left in the tree.
	clean := NewMemory(100, nil)
	defer clean.Close()
	for _, blk := range adopted {
		require.NoError(t, clean.RecordBlock(blk))
	}
	require.Equal(t, clean.RootHash(), tr.RootHash())
}

func TestTrackerPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commitment")

	tr, err := New(path, 100, nil)
	require.NoError(t, err)
	for _, blk := range buildChain(t, 3, "initminer") {
		require.NoError(t, tr.RecordBlock(blk))
	}
	_, version, err := tr.CommitThrough(3)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	root := tr.RootHash()
	require.NoError(t, tr.Close())

	reopened, err := New(path, 100, nil)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, int64(1), reopened.Version())
	require.Equal(t, root, reopened.RootHash())
}
