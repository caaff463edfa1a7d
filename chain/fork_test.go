package chain

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

// registerWitness puts an account into the production rotation, signing
// blocks with its own account key.
func (tc *testChain) registerWitness(name types.AccountName) {
	tc.t.Helper()
	pub := protocol.PublicKey(tc.keys[name].Public().(ed25519.PublicKey))
	tc.produce(tc.tx([]types.AccountName{name}, &protocol.WitnessUpdateOperation{
		Owner:           name,
		URL:             "https://" + string(name) + ".example",
		BlockSigningKey: pub,
		Props: protocol.ChainProperties{
			AccountCreationFee: types.NewAsset(0, CoreSymbol),
			MaximumBlockSize:   protocol.MinBlockSizeLimit * 2,
		},
		Fee: types.NewAsset(0, CoreSymbol),
	}))
}

// setupReversibleChain registers two extra witnesses that never
// produce. Three quarters of the three-member schedule can no longer
// confirm anything, so the irreversible boundary freezes and recent
// blocks stay poppable.
func setupReversibleChain(t *testing.T, seed string) *testChain {
	t.Helper()
	tc := newTestChainWithSeed(t, seed)
	tc.createAccount("alice", 100_000, 20_000)
	tc.createAccount("bob", 100_000, 20_000)
	tc.registerWitness("alice")
	tc.registerWitness("bob")

	// One more block so the reshuffle picks up both registrations.
	tc.produce()
	require.Equal(t, uint8(3), tc.db.Registry().Schedule().NumScheduledWitnesses)
	return tc
}

func TestIrreversibilityWaitsForConfirmations(t *testing.T) {
	tc := setupReversibleChain(t, "stall")

	lib := tc.db.LastIrreversibleBlockNum()
	head := tc.db.HeadBlockNum()
	require.Less(t, lib, head)

	// The head keeps advancing but finality does not: the silent
	// majority of the schedule has confirmed nothing.
	tc.produce()
	tc.produce()
	require.Equal(t, head+2, tc.db.HeadBlockNum())
	require.Equal(t, lib, tc.db.LastIrreversibleBlockNum())
}

func TestPopBlockRestoresHead(t *testing.T) {
	tc := setupReversibleChain(t, "miner")

	head := tc.db.HeadBlockNum()
	headID := tc.db.HeadBlockID()

	blk := tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     "bob",
		Amount: types.NewAsset(10_000, CoreSymbol),
	}))
	require.Len(t, blk.Transactions, 1)
	require.Equal(t, types.Share(90_000), tc.balance("alice", CoreSymbol))

	require.NoError(t, tc.db.PopBlock())
	require.Equal(t, head, tc.db.HeadBlockNum())
	require.True(t, tc.db.HeadBlockID().Equal(headID))

	// The popped transfer is back in the queue and lands in the next
	// produced block.
	require.Len(t, tc.db.PendingTransactions(), 1)
	blk = tc.produce()
	require.Len(t, blk.Transactions, 1)
	require.Equal(t, types.Share(90_000), tc.balance("alice", CoreSymbol))
	require.Equal(t, types.Share(110_000), tc.balance("bob", CoreSymbol))
}

func TestPopBlockRejectsIrreversible(t *testing.T) {
	tc := newTestChain(t)
	tc.produce()

	// A sole producer confirms every block it makes.
	require.Equal(t, tc.db.HeadBlockNum(), tc.db.LastIrreversibleBlockNum())
	require.ErrorContains(t, tc.db.PopBlock(), "irreversible")
}

func TestForkSwitchAdoptsLongerBranch(t *testing.T) {
	a := newTestChainWithSeed(t, "forked")
	var setup []*protocol.SignedBlock
	a.db.SubscribeAppliedBlock(func(blk *protocol.SignedBlock) {
		setup = append(setup, blk)
	})
	a.createAccount("alice", 100_000, 20_000)
	a.createAccount("bob", 100_000, 20_000)
	a.registerWitness("alice")
	a.registerWitness("bob")
	a.produce()

	// A second node built from the same genesis replays to the same
	// head.
	b := newTestChainWithSeed(t, "forked")
	_, alicePriv := protocol.KeyFromSeed(keySeed("account-alice"))
	b.keys["alice"] = alicePriv
	for _, blk := range setup {
		require.NoError(t, b.db.PushBlock(blk, SkipNothing))
	}
	require.True(t, a.db.HeadBlockID().Equal(b.db.HeadBlockID()))

	// Both nodes extend the same head for the same slot, with different
	// contents.
	short := a.produce()
	long1 := b.produce(b.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     "bob",
		Amount: types.NewAsset(10_000, CoreSymbol),
	}))
	require.Equal(t, short.BlockNum(), long1.BlockNum())
	require.Equal(t, short.Timestamp, long1.Timestamp)
	long2 := b.produce()

	// Same height on another branch: stored, but the local head stands.
	require.NoError(t, a.db.PushBlock(long1, SkipNothing))
	require.Equal(t, short.BlockNum(), a.db.HeadBlockNum())
	require.Equal(t, types.Share(100_000), a.balance("alice", CoreSymbol))

	// One block more and the longer branch takes over, replaying its
	// transactions.
	require.NoError(t, a.db.PushBlock(long2, SkipNothing))
	require.Equal(t, long2.BlockNum(), a.db.HeadBlockNum())
	require.True(t, a.db.HeadBlockID().Equal(b.db.HeadBlockID()))
	require.Equal(t, types.Share(90_000), a.balance("alice", CoreSymbol))
	require.Equal(t, types.Share(110_000), a.balance("bob", CoreSymbol))
}
