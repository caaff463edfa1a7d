package chain

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/types"
)

const genesisTime = types.TimeSec(1_600_000_000)

// testInitialSupply is one million core units at precision 3.
const testInitialSupply types.Share = 1_000_000_000

// testChain drives a Database through blocks the way a producing node
// would, tracking the private keys of every account it creates.
type testChain struct {
	t    *testing.T
	db   *Database
	priv ed25519.PrivateKey
	keys map[types.AccountName]ed25519.PrivateKey
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	return newTestChainWithSeed(t, "miner")
}

// keySeed pads or truncates a label to the fixed ed25519 seed size.
func keySeed(label string) []byte {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, label)
	return seed
}

// newTestChainWithSeed builds a chain whose genesis is fully determined
// by the seed label, so two instances start byte-identical.
func newTestChainWithSeed(t *testing.T, label string) *testChain {
	t.Helper()
	pub, priv := protocol.KeyFromSeed(keySeed(label))

	db := New(Options{ChainID: types.HashBytes([]byte("stakeberry-test"))})
	require.NoError(t, db.InitGenesis(GenesisConfig{
		Time:          genesisTime,
		InitMinerKey:  pub,
		InitialSupply: testInitialSupply,
	}))
	return &testChain{
		t:    t,
		db:   db,
		priv: priv,
		keys: map[types.AccountName]ed25519.PrivateKey{InitMinerName: priv},
	}
}

// tx builds a transaction referencing the current head and signs it
// with the named accounts' keys.
func (tc *testChain) tx(signers []types.AccountName, ops ...protocol.Operation) *protocol.SignedTransaction {
	tc.t.Helper()
	headID := tc.db.HeadBlockID()
	stx := &protocol.SignedTransaction{Transaction: protocol.Transaction{
		RefBlockNum:    uint16(protocol.BlockNumFromID(headID)),
		RefBlockPrefix: protocol.RefBlockPrefixFromID(headID),
		Expiration:     tc.db.HeadBlockTime().Add(60),
		Operations:     ops,
	}}
	for _, s := range signers {
		priv, ok := tc.keys[s]
		require.True(tc.t, ok, "no key for %s", s)
		require.NoError(tc.t, stx.Sign(priv, tc.db.ChainID()))
	}
	return stx
}

// nextSlotFor returns the first upcoming slot time owed to the witness.
func (tc *testChain) nextSlotFor(witness types.AccountName) types.TimeSec {
	tc.t.Helper()
	when := tc.db.HeadBlockTime().Add(BlockIntervalSec)
	for i := 0; i < 4*MaxWitnesses; i++ {
		if tc.db.ScheduledProducer(when) == witness {
			return when
		}
		when = when.Add(BlockIntervalSec)
	}
	tc.t.Fatalf("witness %s never scheduled", witness)
	return 0
}

// produce pushes the given transactions and seals them into the next
// block initminer is scheduled for. Every transaction must make it in.
func (tc *testChain) produce(txs ...*protocol.SignedTransaction) *protocol.SignedBlock {
	tc.t.Helper()
	for _, tx := range txs {
		require.NoError(tc.t, tc.db.PushTransaction(tx))
	}
	b, err := tc.db.GenerateBlock(tc.nextSlotFor(InitMinerName), InitMinerName, tc.priv, SkipNothing)
	require.NoError(tc.t, err)
	require.Len(tc.t, b.Transactions, len(txs))
	return b
}

// createAccount registers an account funded and staked by initminer.
// Vesting stake is required for the account to pass bandwidth checks
// once inflation starts.
func (tc *testChain) createAccount(name types.AccountName, liquid, vested types.Share) {
	tc.t.Helper()
	pub, priv := protocol.KeyFromSeed(keySeed("account-" + string(name)))
	tc.keys[name] = priv

	auth := protocol.NewAuthority(pub)
	ops := []protocol.Operation{&protocol.AccountCreateOperation{
		Fee:            types.NewAsset(0, CoreSymbol),
		Creator:        InitMinerName,
		NewAccountName: name,
		Owner:          auth,
		Active:         auth,
		MemoKey:        pub,
	}}
	if liquid > 0 {
		ops = append(ops, &protocol.TransferOperation{
			From:   InitMinerName,
			To:     name,
			Amount: types.NewAsset(liquid, CoreSymbol),
		})
	}
	if vested > 0 {
		ops = append(ops, &protocol.TransferToVestingOperation{
			From:   InitMinerName,
			To:     name,
			Amount: types.NewAsset(vested, CoreSymbol),
		})
	}
	tc.produce(tc.tx([]types.AccountName{InitMinerName}, ops...))
}

func (tc *testChain) balance(name types.AccountName, symbol types.AssetSymbol) types.Share {
	if bal, ok := tc.db.Registry().Balance(name, symbol); ok {
		return bal.Balance
	}
	return 0
}

func TestGenesisState(t *testing.T) {
	tc := newTestChain(t)
	r := tc.db.Registry()

	for _, name := range []types.AccountName{InitMinerName, NullAccountName, TempAccountName} {
		_, ok := r.Account(name)
		require.True(t, ok, "missing genesis account %s", name)
	}
	for _, sym := range []types.AssetSymbol{CoreSymbol, StableSymbol, VestsSymbol} {
		a, ok := r.Asset(sym)
		require.True(t, ok, "missing genesis asset %s", sym)
		require.Equal(t, NullAccountName, a.Issuer)
	}

	props := r.GlobalProps()
	require.Equal(t, uint32(0), props.HeadBlockNumber)
	require.Equal(t, genesisTime, props.Time)
	require.Equal(t, testInitialSupply, props.CurrentSupply.Amount)
	require.Equal(t, testInitialSupply, tc.balance(InitMinerName, CoreSymbol))

	sched := r.Schedule()
	require.Equal(t, []types.AccountName{InitMinerName}, sched.CurrentShuffledWitnesses)

	w, ok := r.Witness(InitMinerName)
	require.True(t, ok)
	require.True(t, w.IsActive())

	// Genesis must not run twice.
	err := tc.db.InitGenesis(GenesisConfig{
		Time:         genesisTime,
		InitMinerKey: w.SigningKey,
	})
	require.Error(t, err)
}

func TestProduceEmptyBlocks(t *testing.T) {
	tc := newTestChain(t)

	b1 := tc.produce()
	require.Equal(t, uint32(1), b1.BlockNum())
	require.Equal(t, uint32(1), tc.db.HeadBlockNum())
	require.Equal(t, genesisTime.Add(BlockIntervalSec), tc.db.HeadBlockTime())

	tc.produce()
	require.Equal(t, uint32(2), tc.db.HeadBlockNum())

	// A sole producer confirms its own blocks immediately.
	require.Equal(t, uint32(2), tc.db.LastIrreversibleBlockNum())

	// Inflation vests to the producer.
	miner, ok := tc.db.Registry().Account(InitMinerName)
	require.True(t, ok)
	require.Greater(t, miner.VestingShares.Amount, types.Share(0))
	require.Greater(t, tc.db.Registry().GlobalProps().CurrentSupply.Amount, testInitialSupply)
}

func TestTransferBetweenAccounts(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)
	tc.createAccount("bob", 0, 10_000)

	require.Equal(t, types.Share(100_000), tc.balance("alice", CoreSymbol))

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     "bob",
		Amount: types.NewAsset(30_000, CoreSymbol),
		Memo:   "rent",
	}))
	require.Equal(t, types.Share(70_000), tc.balance("alice", CoreSymbol))
	require.Equal(t, types.Share(30_000), tc.balance("bob", CoreSymbol))

	// Overdrafts are rejected at push time.
	err := tc.db.PushTransaction(tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     "bob",
		Amount: types.NewAsset(1_000_000_000, CoreSymbol),
	}))
	require.ErrorContains(t, err, "insufficient funds")
}

func TestTransferRequiresSignature(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)
	tc.createAccount("bob", 0, 10_000)

	op := &protocol.TransferOperation{
		From:   "alice",
		To:     "bob",
		Amount: types.NewAsset(1_000, CoreSymbol),
	}

	// Unsigned and wrongly signed both fail authority checks.
	err := tc.db.PushTransaction(tc.tx(nil, op))
	require.Error(t, err)
	err = tc.db.PushTransaction(tc.tx([]types.AccountName{"bob"}, op))
	require.Error(t, err)
}

func TestDuplicateTransactionRejected(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	stx := tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     InitMinerName,
		Amount: types.NewAsset(1_000, CoreSymbol),
	})
	tc.produce(stx)

	// The same transaction cannot enter the chain again until it
	// expires.
	err := tc.db.PushTransaction(stx)
	require.ErrorContains(t, err, "duplicate")
}

func TestTransactionExpirationWindow(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	op := &protocol.TransferOperation{
		From:   "alice",
		To:     InitMinerName,
		Amount: types.NewAsset(1_000, CoreSymbol),
	}

	expired := tc.tx([]types.AccountName{"alice"}, op)
	expired.Expiration = tc.db.HeadBlockTime()
	expired.Signatures = nil
	require.NoError(t, expired.Sign(tc.keys["alice"], tc.db.ChainID()))
	require.Error(t, tc.db.PushTransaction(expired))

	farFuture := tc.tx([]types.AccountName{"alice"}, op)
	farFuture.Expiration = tc.db.HeadBlockTime().Add(MaxTimeUntilExpirationSec + BlockIntervalSec)
	farFuture.Signatures = nil
	require.NoError(t, farFuture.Sign(tc.keys["alice"], tc.db.ChainID()))
	require.Error(t, tc.db.PushTransaction(farFuture))
}

func TestTaposRejectsForeignReference(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	stx := tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     InitMinerName,
		Amount: types.NewAsset(1_000, CoreSymbol),
	})
	stx.RefBlockPrefix++
	stx.Signatures = nil
	require.NoError(t, stx.Sign(tc.keys["alice"], tc.db.ChainID()))
	require.ErrorContains(t, tc.db.PushTransaction(stx), "references unknown block")
}

func TestTransferToVestingMovesStake(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	alice, ok := tc.db.Registry().Account("alice")
	require.True(t, ok)
	vestsBefore := alice.VestingShares.Amount
	sharesBefore := tc.db.Registry().GlobalProps().TotalVestingShares.Amount

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.TransferToVestingOperation{
		From:   "alice",
		To:     "alice",
		Amount: types.NewAsset(50_000, CoreSymbol),
	}))

	require.Equal(t, types.Share(50_000), tc.balance("alice", CoreSymbol))
	alice, ok = tc.db.Registry().Account("alice")
	require.True(t, ok)
	require.Greater(t, alice.VestingShares.Amount, vestsBefore)
	require.Equal(t, VestsSymbol, alice.VestingShares.Symbol)

	props := tc.db.Registry().GlobalProps()
	require.Greater(t, props.TotalVestingShares.Amount, sharesBefore)
}

func TestSavingsRoundTrip(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.TransferToSavingsOperation{
		From:   "alice",
		To:     "alice",
		Amount: types.NewAsset(40_000, CoreSymbol),
	}))
	bal, ok := tc.db.Registry().Balance("alice", CoreSymbol)
	require.True(t, ok)
	require.Equal(t, types.Share(60_000), bal.Balance)
	require.Equal(t, types.Share(40_000), bal.Savings)

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.TransferFromSavingsOperation{
		From:      "alice",
		RequestID: 1,
		To:        "alice",
		Amount:    types.NewAsset(40_000, CoreSymbol),
	}))
	bal, _ = tc.db.Registry().Balance("alice", CoreSymbol)
	require.Equal(t, types.Share(0), bal.Savings)

	// The withdrawal is delayed; the liquid side is not credited yet.
	require.Equal(t, types.Share(60_000), bal.Balance)

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.CancelTransferFromSavingsOperation{
		From:      "alice",
		RequestID: 1,
	}))
	bal, _ = tc.db.Registry().Balance("alice", CoreSymbol)
	require.Equal(t, types.Share(40_000), bal.Savings)
}

func TestBandwidthRequiresStakeOnlyWhenProducing(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 20_000)
	tc.createAccount("poor", 50_000, 0)

	stx := tc.tx([]types.AccountName{"poor"}, &protocol.TransferOperation{
		From:   "poor",
		To:     "alice",
		Amount: types.NewAsset(1_000, CoreSymbol),
	})

	// Accepting into the pending set records the usage without
	// enforcing the ceiling.
	require.NoError(t, tc.db.PushTransaction(stx))
	bw, ok := tc.db.Registry().Bandwidth("poor", state.BandwidthForum)
	require.True(t, ok)
	require.Greater(t, bw.AverageBandwidth, types.Share(0))

	// A producer leaves a stakeless account's transaction out of the
	// block.
	b, err := tc.db.GenerateBlock(tc.nextSlotFor(InitMinerName), InitMinerName, tc.priv, SkipNothing)
	require.NoError(t, err)
	require.Empty(t, b.Transactions)
	require.Equal(t, types.Share(50_000), tc.balance("poor", CoreSymbol))

	// Staking the account restores its share of the budget.
	tc.produce(tc.tx([]types.AccountName{InitMinerName}, &protocol.TransferToVestingOperation{
		From:   InitMinerName,
		To:     "poor",
		Amount: types.NewAsset(10_000, CoreSymbol),
	}))
	tc.produce(tc.tx([]types.AccountName{"poor"}, &protocol.TransferOperation{
		From:   "poor",
		To:     "alice",
		Amount: types.NewAsset(1_000, CoreSymbol),
	}))
	require.Equal(t, types.Share(49_000), tc.balance("poor", CoreSymbol))
}

func TestPendingTransactionsCarryAcrossBlocks(t *testing.T) {
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 10_000)

	stx := tc.tx([]types.AccountName{"alice"}, &protocol.TransferOperation{
		From:   "alice",
		To:     InitMinerName,
		Amount: types.NewAsset(1_000, CoreSymbol),
	})
	require.NoError(t, tc.db.PushTransaction(stx))
	require.Len(t, tc.db.PendingTransactions(), 1)

	b, err := tc.db.GenerateBlock(tc.nextSlotFor(InitMinerName), InitMinerName, tc.priv, SkipNothing)
	require.NoError(t, err)
	require.Len(t, b.Transactions, 1)
	require.Empty(t, tc.db.PendingTransactions())
}

func TestProxyChainTruncatesDeepStake(t *testing.T) {
	tc := newTestChain(t)

	proxies := []types.AccountName{"prox0", "prox1", "prox2", "prox3", "prox4"}
	for _, name := range proxies {
		tc.createAccount(name, 1_000, 10_000)
	}
	tc.createAccount("vera", 1_000, 10_000)

	vest := func(name types.AccountName) types.Share {
		acc, ok := tc.db.Registry().Account(name)
		require.True(t, ok)
		return acc.VestingShares.Amount
	}
	witnessVotes := func() types.Share {
		w, ok := tc.db.Registry().Witness(InitMinerName)
		require.True(t, ok)
		return w.Votes
	}

	base := witnessVotes()
	tc.produce(tc.tx([]types.AccountName{"vera"}, &protocol.AccountWitnessVoteOperation{
		Account: "vera",
		Witness: InitMinerName,
		Approve: true,
	}))
	require.Equal(t, base+vest("vera"), witnessVotes())

	// Chain prox0 -> prox1 -> ... -> prox4 -> vera, built from the voter
	// outward. Each new link fans its stake up to vera, who passes it on
	// to the approved witness.
	next := types.AccountName("vera")
	want := witnessVotes()
	for i := len(proxies) - 1; i >= 0; i-- {
		name := proxies[i]
		tc.produce(tc.tx([]types.AccountName{name}, &protocol.AccountWitnessProxyOperation{
			Account: name,
			Proxy:   next,
		}))
		if i > 0 {
			want += vest(name)
		}
		next = name
	}

	// prox0 sits five hops from the voter, past the recursion limit, so
	// its stake silently stops counting.
	require.Equal(t, want, witnessVotes())

	vera, ok := tc.db.Registry().Account("vera")
	require.True(t, ok)
	require.Equal(t, vest("prox1"), vera.ProxiedVsfVotes[state.MaxProxyRecursionDepth-1])
	require.Equal(t, types.Share(0), vera.ProxiedVsfVotes[state.MaxProxyRecursionDepth])

	// Clearing a mid-chain proxy pulls the nearer stakes back out.
	tc.produce(tc.tx([]types.AccountName{"prox3"}, &protocol.AccountWitnessProxyOperation{
		Account: "prox3",
		Proxy:   "",
	}))
	require.Equal(t, want-vest("prox3")-vest("prox2")-vest("prox1"), witnessVotes())
}
