package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

func TestLimitOrderPriceIndexOrdering(t *testing.T) {
	db := store.New()
	r := NewRegistry(db)

	mk := func(seller types.AccountName, orderID uint32, sell, receive int64) *LimitOrder {
		obj, err := r.LimitOrders.Create(&LimitOrder{
			Seller:    seller,
			OrderID:   orderID,
			ForSale:   types.Share(sell),
			SellPrice: types.NewPrice(types.NewAsset(types.Share(sell), "BERRY"), types.NewAsset(types.Share(receive), "BBD")),
		})
		require.NoError(t, err)
		return obj.(*LimitOrder)
	}

	// Prices: 10/5=2.0, 10/10=1.0, 10/20=0.5 (BERRY per BBD offered).
	low := mk("alice", 1, 10, 20)
	high := mk("bob", 1, 10, 5)
	mid := mk("carol", 1, 10, 10)
	mid2 := mk("dave", 1, 20, 20) // same rate as mid, created later

	var got []*LimitOrder
	r.LimitOrders.Index(ByPrice).Ascend(func(o store.Object) bool {
		got = append(got, o.(*LimitOrder))
		return true
	})
	require.Equal(t, []*LimitOrder{high, mid, mid2, low}, got)
}

func TestCallOrderCollateralIndexOrdering(t *testing.T) {
	db := store.New()
	r := NewRegistry(db)

	mk := func(borrower types.AccountName, collateral, debt int64) *CallOrder {
		obj, err := r.CallOrders.Create(&CallOrder{
			Borrower:   borrower,
			Collateral: types.Share(collateral),
			Debt:       types.Share(debt),
			CallPrice: types.CallPrice(
				types.NewAsset(types.Share(debt), "BBD"),
				types.NewAsset(types.Share(collateral), "BERRY"),
				17500,
			),
		})
		require.NoError(t, err)
		return obj.(*CallOrder)
	}

	thin := mk("alice", 150, 100) // 1.5x
	fat := mk("bob", 400, 100)    // 4.0x
	midd := mk("carol", 200, 100) // 2.0x

	var got []*CallOrder
	r.CallOrders.Index(ByCollateral).Ascend(func(o store.Object) bool {
		got = append(got, o.(*CallOrder))
		return true
	})
	require.Equal(t, []*CallOrder{thin, midd, fat}, got)

	found, ok := r.CallOrderBy("carol", "BBD")
	require.True(t, ok)
	require.Equal(t, midd, found)
}

func TestUpdateMedianFeeds(t *testing.T) {
	now := types.TimeFromUnix(1_700_000_000)
	feed := func(base, quote int64, mcr types.Percent) protocol.PriceFeed {
		return protocol.PriceFeed{
			SettlementPrice: types.NewPrice(
				types.NewAsset(types.Share(base), "GOLD"),
				types.NewAsset(types.Share(quote), "BERRY"),
			),
			MaintenanceCollateralRatio: mcr,
			MaximumShortSqueezeRatio:   11000,
		}
	}

	b := &AssetBitassetData{
		Symbol: "GOLD",
		Options: protocol.BitassetOptions{
			FeedLifetimeSec: 3600,
			MinimumFeeds:    2,
		},
	}

	t.Run("too few feeds leaves null", func(t *testing.T) {
		b.Feeds = []FeedEntry{{Publisher: "w1", PublishedAt: now, Feed: feed(1, 2, 17500)}}
		b.UpdateMedianFeeds(now)
		require.True(t, b.CurrentFeed.IsNull())
	})

	t.Run("expired feeds ignored", func(t *testing.T) {
		b.Feeds = []FeedEntry{
			{Publisher: "w1", PublishedAt: now.Add(-7200), Feed: feed(1, 1, 17500)},
			{Publisher: "w2", PublishedAt: now, Feed: feed(1, 2, 17500)},
		}
		b.UpdateMedianFeeds(now)
		require.True(t, b.CurrentFeed.IsNull())
	})

	t.Run("per-field median", func(t *testing.T) {
		b.Feeds = []FeedEntry{
			{Publisher: "w1", PublishedAt: now, Feed: feed(1, 1, 20000)}, // price 1.0, mcr 2.0
			{Publisher: "w2", PublishedAt: now, Feed: feed(3, 1, 17500)}, // price 3.0, mcr 1.75
			{Publisher: "w3", PublishedAt: now, Feed: feed(2, 1, 15000)}, // price 2.0, mcr 1.5
		}
		b.UpdateMedianFeeds(now)
		require.False(t, b.CurrentFeed.IsNull())
		// Median price is 2.0 and median ratio 1.75: taken field by
		// field, not from a single publisher.
		require.True(t, b.CurrentFeed.SettlementPrice.Equal(feed(2, 1, 0).SettlementPrice))
		require.Equal(t, types.Percent(17500), b.CurrentFeed.MaintenanceCollateralRatio)
	})
}

func TestAccountVoteWeightHelpers(t *testing.T) {
	a := &Account{
		VestingShares:          types.NewAsset(1000, "VESTS"),
		DelegatedVestingShares: types.NewAsset(300, "VESTS"),
		ReceivedVestingShares:  types.NewAsset(50, "VESTS"),
	}
	a.ProxiedVsfVotes[0] = 10
	a.ProxiedVsfVotes[3] = 5

	require.Equal(t, types.Share(750), a.EffectiveVestingShares())
	require.Equal(t, types.Share(15), a.ProxiedVsfVotesTotal())
	require.Equal(t, types.Share(1015), a.WitnessVoteWeight())
}

func TestVestingSharePrice(t *testing.T) {
	p := &DynamicGlobalProperties{
		TotalVestingFund:   types.NewAsset(0, "BERRY"),
		TotalVestingShares: types.NewAsset(0, "VESTS"),
	}
	boot := p.VestingSharePrice()
	require.Equal(t, types.Share(1000), boot.Base.Amount)

	p.TotalVestingFund = types.NewAsset(500, "BERRY")
	p.TotalVestingShares = types.NewAsset(2000, "VESTS")
	price := p.VestingSharePrice()
	// 100 BERRY buys 400 VESTS at 2000/500.
	got := types.NewAsset(100, "BERRY").Mul(price)
	require.Equal(t, types.NewAsset(400, "VESTS"), got)
}
