package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

const testMPA types.AssetSymbol = "EUR"

// setupBitasset creates a core-backed market-issued EUR with alice as
// issuer and sole feed publisher, plus two funded borrowers.
func setupBitasset(t *testing.T) *testChain {
	t.Helper()
	tc := newTestChain(t)
	tc.createAccount("alice", 100_000, 20_000)
	tc.createAccount("rob", 500_000, 20_000)
	tc.createAccount("sam", 20_000, 20_000)

	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.AssetCreateOperation{
		Issuer:    "alice",
		Symbol:    testMPA,
		Precision: 3,
		Options: protocol.AssetOptions{
			MaxSupply:         1_000_000_000,
			IssuerPermissions: protocol.BitassetPermissionMask,
			CoreExchangeRate: types.NewPrice(
				types.NewAsset(1_000, testMPA),
				types.NewAsset(1_000, CoreSymbol),
			),
			Description: "test euro",
		},
		BitassetOpts: &protocol.BitassetOptions{
			FeedLifetimeSec:              86_400,
			MinimumFeeds:                 1,
			ForceSettlementDelaySec:      60,
			MaximumForceSettlementVolume: types.Percent100,
			ShortBackingAsset:            CoreSymbol,
		},
	}))
	return tc
}

// bitassetFeed prices EUR at base/quote core with fixed collateral
// ratios.
func bitassetFeed(base, quote types.Share) protocol.PriceFeed {
	return protocol.PriceFeed{
		SettlementPrice: types.NewPrice(
			types.NewAsset(base, testMPA),
			types.NewAsset(quote, CoreSymbol),
		),
		MaintenanceCollateralRatio: 17_500,
		MaximumShortSqueezeRatio:   11_000,
		CoreExchangeRate: types.NewPrice(
			types.NewAsset(1_000, testMPA),
			types.NewAsset(1_000, CoreSymbol),
		),
	}
}

func (tc *testChain) publishFeed(base, quote types.Share) {
	tc.t.Helper()
	tc.produce(tc.tx([]types.AccountName{"alice"}, &protocol.AssetPublishFeedOperation{
		Publisher: "alice",
		Symbol:    testMPA,
		Feed:      bitassetFeed(base, quote),
	}))
}

func borrowOp(account types.AccountName, collateral, debt types.Share) *protocol.CallOrderUpdateOperation {
	return &protocol.CallOrderUpdateOperation{
		FundingAccount:  account,
		DeltaCollateral: types.NewAsset(collateral, CoreSymbol),
		DeltaDebt:       types.NewAsset(debt, testMPA),
	}
}

func TestBorrowAgainstCollateral(t *testing.T) {
	tc := setupBitasset(t)

	// No feed, no borrowing.
	err := tc.db.PushTransaction(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))
	require.ErrorContains(t, err, "no price feed")

	tc.publishFeed(1_000, 1_000)

	// 10 core backing 2 EUR at a 1:1 feed is a 500% ratio, well above
	// the 175% maintenance requirement.
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))
	require.Equal(t, types.Share(490_000), tc.balance("rob", CoreSymbol))
	require.Equal(t, types.Share(2_000), tc.balance("rob", testMPA))

	call, ok := tc.db.Registry().CallOrderBy("rob", testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(10_000), call.Collateral)
	require.Equal(t, types.Share(2_000), call.Debt)

	dyn, ok := tc.db.Registry().AssetDynamic(testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(2_000), dyn.CurrentSupply)

	// 1 core backing 1 EUR is only 100%, below maintenance.
	err = tc.db.PushTransaction(tc.tx([]types.AccountName{"sam"}, borrowOp("sam", 1_000, 1_000)))
	require.ErrorContains(t, err, "below maintenance collateral")
	_, ok = tc.db.Registry().CallOrderBy("sam", testMPA)
	require.False(t, ok)

	// Repaying the full debt releases the collateral and burns the
	// supply.
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 0, -2_000)))
	require.Equal(t, types.Share(500_000), tc.balance("rob", CoreSymbol))
	require.Equal(t, types.Share(0), tc.balance("rob", testMPA))
	_, ok = tc.db.Registry().CallOrderBy("rob", testMPA)
	require.False(t, ok)
	dyn, ok = tc.db.Registry().AssetDynamic(testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(0), dyn.CurrentSupply)
}

func TestMarginCallFailsWithoutLiquidity(t *testing.T) {
	tc := setupBitasset(t)
	tc.publishFeed(1_000, 1_000)
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))

	// At 1 EUR = 4 core the position is worth 2.5 EUR against 2 EUR of
	// debt: solvent, but under maintenance. With an empty book the feed
	// that would trigger the call is rejected instead.
	err := tc.db.PushTransaction(tc.tx([]types.AccountName{"alice"}, &protocol.AssetPublishFeedOperation{
		Publisher: "alice",
		Symbol:    testMPA,
		Feed:      bitassetFeed(1_000, 4_000),
	}))
	require.ErrorContains(t, err, "no liquidity to clear margin call")

	call, ok := tc.db.Registry().CallOrderBy("rob", testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(10_000), call.Collateral)
	require.Equal(t, types.Share(2_000), call.Debt)

	bit, ok := tc.db.Registry().Bitasset(testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(1_000), bit.CurrentFeed.SettlementPrice.Quote.Amount)
}

func TestBlackSwanSettlesAllPositions(t *testing.T) {
	tc := setupBitasset(t)
	tc.publishFeed(1_000, 1_000)
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))

	// At 1 EUR = 10 core the collateral is worth 1 EUR against 2 EUR of
	// debt. The whole asset settles at the position's own ratio, so the
	// entire 10 core becomes the settlement fund.
	tc.publishFeed(1_000, 10_000)

	bit, ok := tc.db.Registry().Bitasset(testMPA)
	require.True(t, ok)
	require.True(t, bit.HasSettlement())
	require.Equal(t, types.Share(10_000), bit.SettlementFund)
	_, ok = tc.db.Registry().CallOrderBy("rob", testMPA)
	require.False(t, ok)
	require.Equal(t, types.Share(490_000), tc.balance("rob", CoreSymbol))

	err := tc.db.PushTransaction(tc.tx([]types.AccountName{"sam"}, borrowOp("sam", 10_000, 1_000)))
	require.ErrorContains(t, err, "settled, no new positions")

	// Partial redemption pays from the fund at the settlement price.
	tc.produce(tc.tx([]types.AccountName{"rob"}, &protocol.AssetSettleOperation{
		Account: "rob",
		Amount:  types.NewAsset(500, testMPA),
	}))
	require.Equal(t, types.Share(1_500), tc.balance("rob", testMPA))
	require.Equal(t, types.Share(492_500), tc.balance("rob", CoreSymbol))
	bit, _ = tc.db.Registry().Bitasset(testMPA)
	require.Equal(t, types.Share(7_500), bit.SettlementFund)

	// The final claim sweeps whatever remains in the fund.
	tc.produce(tc.tx([]types.AccountName{"rob"}, &protocol.AssetSettleOperation{
		Account: "rob",
		Amount:  types.NewAsset(1_500, testMPA),
	}))
	require.Equal(t, types.Share(0), tc.balance("rob", testMPA))
	require.Equal(t, types.Share(500_000), tc.balance("rob", CoreSymbol))
	bit, _ = tc.db.Registry().Bitasset(testMPA)
	require.Equal(t, types.Share(0), bit.SettlementFund)
	dyn, ok := tc.db.Registry().AssetDynamic(testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(0), dyn.CurrentSupply)
}

func TestForceSettlementMaturesAgainstPositions(t *testing.T) {
	tc := setupBitasset(t)
	tc.publishFeed(1_000, 1_000)
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))

	// Force settling escrows the debt asset immediately; collateral
	// arrives only after the settlement delay.
	tc.produce(tc.tx([]types.AccountName{"rob"}, &protocol.AssetSettleOperation{
		Account: "rob",
		Amount:  types.NewAsset(500, testMPA),
	}))
	require.Equal(t, types.Share(1_500), tc.balance("rob", testMPA))
	require.Equal(t, types.Share(490_000), tc.balance("rob", CoreSymbol))

	for i := 0; i < 21; i++ {
		tc.produce()
	}

	// Matured: 500 EUR filled against rob's own position at the 1:1
	// feed.
	require.Equal(t, types.Share(490_500), tc.balance("rob", CoreSymbol))
	call, ok := tc.db.Registry().CallOrderBy("rob", testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(9_500), call.Collateral)
	require.Equal(t, types.Share(1_500), call.Debt)
	dyn, ok := tc.db.Registry().AssetDynamic(testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(1_500), dyn.CurrentSupply)
}

func TestCollateralBidRevivesSettledAsset(t *testing.T) {
	tc := setupBitasset(t)
	tc.publishFeed(1_000, 1_000)
	tc.produce(tc.tx([]types.AccountName{"rob"}, borrowOp("rob", 10_000, 2_000)))
	tc.publishFeed(1_000, 10_000)

	bit, ok := tc.db.Registry().Bitasset(testMPA)
	require.True(t, ok)
	require.True(t, bit.HasSettlement())

	// Sam bids enough collateral to take over the full outstanding
	// supply. The maintenance pass revives the asset, turning the bid
	// into a margin position funded by the bid plus the settlement fund.
	tc.produce(tc.tx([]types.AccountName{"sam"}, &protocol.BidCollateralOperation{
		Bidder:               "sam",
		AdditionalCollateral: types.NewAsset(5_000, CoreSymbol),
		DebtCovered:          types.NewAsset(2_000, testMPA),
	}))

	bit, _ = tc.db.Registry().Bitasset(testMPA)
	require.False(t, bit.HasSettlement())
	require.Equal(t, types.Share(0), bit.SettlementFund)

	call, ok := tc.db.Registry().CallOrderBy("sam", testMPA)
	require.True(t, ok)
	require.Equal(t, types.Share(15_000), call.Collateral)
	require.Equal(t, types.Share(2_000), call.Debt)
	require.Equal(t, types.Share(15_000), tc.balance("sam", CoreSymbol))

	// Rob's holdings ride through the revival untouched.
	require.Equal(t, types.Share(2_000), tc.balance("rob", testMPA))
}
