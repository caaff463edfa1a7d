package chain

import (
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// leastCollateralizedCall returns the margin position closest to its
// call price for one debt asset, or nil.
func (db *Database) leastCollateralizedCall(debt types.AssetSymbol) *state.CallOrder {
	probe := &state.CallOrder{
		Debt:      types.MaxShareSupply,
		CallPrice: types.Price{Quote: types.Asset{Symbol: debt}},
	}
	var least *state.CallOrder
	db.idx.CallOrders.Index(state.ByCollateral).AscendFrom(probe, func(obj store.Object) bool {
		o := obj.(*state.CallOrder)
		if o.DebtSymbol() != debt {
			return false
		}
		least = o
		return false
	})
	return least
}

// collateralValueInDebt prices a position's collateral at the feed.
func collateralValueInDebt(call *state.CallOrder, feed protocol.PriceFeed) types.Asset {
	return call.CollateralAsset().Mul(feed.SettlementPrice)
}

// undercollateralized reports whether the position sits below the
// maintenance collateral ratio at the current feed.
func undercollateralized(call *state.CallOrder, feed protocol.PriceFeed) bool {
	value := collateralValueInDebt(call, feed)
	lhs := types.Mul64(uint64(value.Amount), uint64(types.Percent100))
	rhs := types.Mul64(uint64(call.Debt), uint64(feed.MaintenanceCollateralRatio))
	return lhs.Cmp(rhs) < 0
}

// checkForBlackSwan globally settles the asset if the least
// collateralized position no longer covers its own debt at the feed.
// Returns whether a settlement happened.
func (db *Database) checkForBlackSwan(asset *state.AssetObject, bit *state.AssetBitassetData) (bool, error) {
	if bit.HasSettlement() || bit.CurrentFeed.IsNull() {
		return false, nil
	}
	call := db.leastCollateralizedCall(asset.Symbol)
	if call == nil {
		return false, nil
	}
	if collateralValueInDebt(call, bit.CurrentFeed).Amount >= call.Debt {
		return false, nil
	}
	// Settle at the failing position's own ratio so every position can
	// cover its share.
	settlePrice := types.NewPrice(call.DebtAsset(), call.CollateralAsset())
	if err := db.globallySettleAsset(asset, bit, settlePrice); err != nil {
		return false, err
	}
	return true, nil
}

// checkCallOrders executes margin calls against the order book until
// no position is below maintenance or the book runs out of acceptable
// offers.
func (db *Database) checkCallOrders(symbol types.AssetSymbol) error {
	asset, err := db.asset(symbol)
	if err != nil {
		return err
	}
	bit, err := db.bitasset(symbol)
	if err != nil {
		return err
	}
	if bit.HasSettlement() || bit.CurrentFeed.IsNull() {
		return nil
	}
	if swan, err := db.checkForBlackSwan(asset, bit); err != nil || swan {
		return err
	}

	collateral := bit.Options.ShortBackingAsset
	feed := bit.CurrentFeed

	// The squeeze price caps what a margin call will pay: at most
	// MaximumShortSqueezeRatio above the feed.
	squeeze := types.Price{
		Base:  types.NewAsset(feed.SettlementPrice.Base.Amount*types.Share(types.Percent100), symbol),
		Quote: types.NewAsset(feed.SettlementPrice.Quote.Amount*types.Share(feed.MaximumShortSqueezeRatio), collateral),
	}

	for {
		call := db.leastCollateralizedCall(symbol)
		if call == nil || !undercollateralized(call, feed) {
			return nil
		}
		// A margin call with no book to clear it fails the triggering
		// operation rather than leave the position standing.
		order := db.bestOppositeOrder(collateral, symbol)
		if order == nil {
			return types.Validationf("no liquidity to clear margin call on %s", symbol)
		}
		if order.SellPrice.Cmp(squeeze) < 0 {
			return types.Validationf("margin call on %s exceeds short squeeze limit", symbol)
		}

		debtToBuy := types.NewAsset(call.Debt, symbol)
		if order.ForSale < debtToBuy.Amount {
			debtToBuy.Amount = order.ForSale
		}
		collateralPaid := debtToBuy.Mul(order.SellPrice)
		if collateralPaid.Amount == 0 {
			if err := db.cancelOrder(order); err != nil {
				return err
			}
			continue
		}
		if collateralPaid.Amount > call.Collateral {
			collateralPaid.Amount = call.Collateral
		}

		db.notifyVirtualOp(&protocol.FillOrderOperation{
			CurrentOwner: call.Borrower,
			CurrentID:    call.ID,
			CurrentPays:  collateralPaid,
			OpenOwner:    order.Seller,
			OpenID:       order.ID,
			OpenPays:     debtToBuy,
		})

		// The order's debt tokens retire the position's debt.
		if _, err := db.fillOrder(order, debtToBuy, collateralPaid); err != nil {
			return err
		}
		if err := db.adjustSupply(debtToBuy.Neg()); err != nil {
			return err
		}

		if call.Debt == debtToBuy.Amount {
			refund := types.NewAsset(call.Collateral-collateralPaid.Amount, collateral)
			if refund.Amount > 0 {
				if err := db.adjustBalance(call.Borrower, refund); err != nil {
					return err
				}
			}
			if err := db.idx.CallOrders.Remove(call); err != nil {
				return err
			}
			continue
		}
		if err := db.idx.CallOrders.Modify(call, func(obj store.Object) {
			c := obj.(*state.CallOrder)
			c.Debt -= debtToBuy.Amount
			c.Collateral -= collateralPaid.Amount
			c.CallPrice = types.CallPrice(c.DebtAsset(), c.CollateralAsset(), feed.MaintenanceCollateralRatio)
		}); err != nil {
			return err
		}
	}
}

// globallySettleAsset collapses every margin position of a bitasset
// into a settlement fund at settlePrice (debt/collateral). Holders
// redeem from the fund afterwards.
func (db *Database) globallySettleAsset(asset *state.AssetObject, bit *state.AssetBitassetData, settlePrice types.Price) error {
	var calls []*state.CallOrder
	probe := &state.CallOrder{
		Debt:      types.MaxShareSupply,
		CallPrice: types.Price{Quote: types.Asset{Symbol: asset.Symbol}},
	}
	db.idx.CallOrders.Index(state.ByCollateral).AscendFrom(probe, func(obj store.Object) bool {
		o := obj.(*state.CallOrder)
		if o.DebtSymbol() != asset.Symbol {
			return false
		}
		calls = append(calls, o)
		return true
	})

	var fund types.Share
	for _, call := range calls {
		owed := call.DebtAsset().Mul(settlePrice)
		if owed.Amount > call.Collateral {
			owed.Amount = call.Collateral
		}
		fund += owed.Amount
		refund := types.NewAsset(call.Collateral-owed.Amount, bit.Options.ShortBackingAsset)
		if refund.Amount > 0 {
			if err := db.adjustBalance(call.Borrower, refund); err != nil {
				return err
			}
		}
		if err := db.idx.CallOrders.Remove(call); err != nil {
			return err
		}
	}

	db.log.Info("asset globally settled",
		logging.Symbol(string(asset.Symbol)),
		logging.Count(len(calls)),
	)
	return db.idx.AssetBitassets.Modify(bit, func(obj store.Object) {
		b := obj.(*state.AssetBitassetData)
		b.SettlementPrice = settlePrice
		b.SettlementFund += fund
	})
}

// settleFromFund redeems debt asset against the settlement fund at the
// settlement price. The final claim sweeps whatever remains in the
// fund; every earlier claim rounds in the fund's favor.
func (db *Database) settleFromFund(account types.AccountName, bit *state.AssetBitassetData, amount types.Asset) error {
	dyn, ok := db.idx.AssetDynamic(amount.Symbol)
	if !ok {
		return types.Validationf("unknown asset %q", amount.Symbol)
	}
	if amount.Amount > dyn.CurrentSupply {
		return types.Consistencyf("settling %s exceeds supply %d", amount, dyn.CurrentSupply)
	}

	out := amount.Mul(bit.SettlementPrice)
	if amount.Amount == dyn.CurrentSupply || out.Amount > bit.SettlementFund {
		out.Amount = bit.SettlementFund
	}

	if err := db.adjustBalance(account, amount.Neg()); err != nil {
		return err
	}
	if err := db.adjustSupply(amount.Neg()); err != nil {
		return err
	}
	if err := db.idx.AssetBitassets.Modify(bit, func(obj store.Object) {
		obj.(*state.AssetBitassetData).SettlementFund -= out.Amount
	}); err != nil {
		return err
	}
	if out.Amount > 0 {
		return db.adjustBalance(account, out)
	}
	return nil
}

// cancelBid refunds a collateral bid and removes it.
func (db *Database) cancelBid(bid *state.CollateralBid) error {
	refund := bid.InvSwanPrice.Base
	if refund.Amount > 0 {
		if err := db.adjustBalance(bid.Bidder, refund); err != nil {
			return err
		}
	}
	return db.idx.CollateralBids.Remove(bid)
}

// bidsFor collects the resting bids for one settled asset, most
// generous collateralization first.
func (db *Database) bidsFor(debt, backing types.AssetSymbol) []*state.CollateralBid {
	probe := &state.CollateralBid{
		InvSwanPrice: types.MaxPrice(backing, debt),
	}
	var bids []*state.CollateralBid
	db.idx.CollateralBids.Index(state.ByPrice).AscendFrom(probe, func(obj store.Object) bool {
		b := obj.(*state.CollateralBid)
		if b.DebtSymbol() != debt {
			return false
		}
		bids = append(bids, b)
		return true
	})
	return bids
}

// processBids revives a settled bitasset once collateral bids cover
// its entire outstanding supply. Each winning bid becomes a margin
// position funded by its own collateral plus its share of the
// settlement fund; leftover bids are refunded.
func (db *Database) processBids(asset *state.AssetObject, bit *state.AssetBitassetData) error {
	if !bit.HasSettlement() || bit.CurrentFeed.IsNull() {
		return nil
	}
	dyn, ok := db.idx.AssetDynamic(asset.Symbol)
	if !ok {
		return types.Consistencyf("asset %s has no supply record", asset.Symbol)
	}
	if dyn.CurrentSupply == 0 {
		// Everyone settled out; the asset revives empty.
		return db.reviveBitasset(asset, bit, nil)
	}

	bids := db.bidsFor(asset.Symbol, bit.Options.ShortBackingAsset)
	var covered types.Share
	var winners []*state.CollateralBid
	for _, bid := range bids {
		if covered >= dyn.CurrentSupply {
			break
		}
		covered += bid.InvSwanPrice.Quote.Amount
		winners = append(winners, bid)
	}
	if covered < dyn.CurrentSupply {
		return nil
	}
	return db.reviveBitasset(asset, bit, winners)
}

// reviveBitasset clears the settlement state, converting the winning
// bids into margin positions backed by the settlement fund.
func (db *Database) reviveBitasset(asset *state.AssetObject, bit *state.AssetBitassetData, winners []*state.CollateralBid) error {
	dyn, ok := db.idx.AssetDynamic(asset.Symbol)
	if !ok {
		return types.Consistencyf("asset %s has no supply record", asset.Symbol)
	}

	remainingDebt := dyn.CurrentSupply
	remainingFund := bit.SettlementFund
	for _, bid := range winners {
		debt := bid.InvSwanPrice.Quote.Amount
		if debt > remainingDebt {
			debt = remainingDebt
		}
		fundShare := types.MulDiv(bit.SettlementFund, debt, dyn.CurrentSupply)
		if fundShare > remainingFund {
			fundShare = remainingFund
		}
		if debt == remainingDebt {
			// The last winner absorbs the rounding remainder.
			fundShare = remainingFund
		}
		remainingDebt -= debt
		remainingFund -= fundShare

		collateral := bid.InvSwanPrice.Base.Amount + fundShare
		debtAsset := types.NewAsset(debt, asset.Symbol)
		collAsset := types.NewAsset(collateral, bit.Options.ShortBackingAsset)
		if _, err := db.idx.CallOrders.Create(&state.CallOrder{
			Borrower:   bid.Bidder,
			Collateral: collateral,
			Debt:       debt,
			CallPrice:  types.CallPrice(debtAsset, collAsset, bit.CurrentFeed.MaintenanceCollateralRatio),
		}); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.ExecuteBidOperation{
			Bidder:     bid.Bidder,
			Debt:       debtAsset,
			Collateral: collAsset,
		})
		if err := db.idx.CollateralBids.Remove(bid); err != nil {
			return err
		}
	}

	// Whatever fund is left after an empty revival returns to nobody;
	// with winners it has been fully distributed above.
	for _, bid := range db.bidsFor(asset.Symbol, bit.Options.ShortBackingAsset) {
		if err := db.cancelBid(bid); err != nil {
			return err
		}
	}

	db.log.Info("bitasset revived", logging.Symbol(string(asset.Symbol)))
	return db.idx.AssetBitassets.Modify(bit, func(obj store.Object) {
		b := obj.(*state.AssetBitassetData)
		b.SettlementPrice = types.Price{}
		b.SettlementFund = 0
	})
}
