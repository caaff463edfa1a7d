package chain

import (
	"sort"
	"strings"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

func reservedSymbol(s types.AssetSymbol) bool {
	return s == CoreSymbol || s == StableSymbol || s == VestsSymbol
}

func (db *Database) applyAssetCreate(op *protocol.AssetCreateOperation) error {
	if _, err := db.account(op.Issuer); err != nil {
		return err
	}
	if reservedSymbol(op.Symbol) {
		return types.Validationf("symbol %s is reserved", op.Symbol)
	}
	if _, ok := db.idx.Asset(op.Symbol); ok {
		return types.Validationf("asset %s already exists", op.Symbol)
	}
	// A sub-symbol like A.B belongs to the issuer of A.
	if dot := strings.IndexByte(string(op.Symbol), '.'); dot > 0 {
		parent, ok := db.idx.Asset(op.Symbol[:dot])
		if !ok {
			return types.Validationf("parent asset %s does not exist", op.Symbol[:dot])
		}
		if parent.Issuer != op.Issuer {
			return types.Validationf("only the issuer of %s may create %s", parent.Symbol, op.Symbol)
		}
	}
	cer := op.Options.CoreExchangeRate
	if cer.Base.Symbol != op.Symbol || cer.Quote.Symbol != CoreSymbol {
		return types.Validationf("core exchange rate must price %s in %s", op.Symbol, CoreSymbol)
	}
	if op.BitassetOpts != nil {
		backing := op.BitassetOpts.ShortBackingAsset
		if backing != CoreSymbol {
			if _, err := db.asset(backing); err != nil {
				return err
			}
		}
	}

	if _, err := db.idx.Assets.Create(&state.AssetObject{
		Symbol:       op.Symbol,
		Precision:    op.Precision,
		Issuer:       op.Issuer,
		Options:      op.Options,
		MarketIssued: op.BitassetOpts != nil,
	}); err != nil {
		return err
	}
	if _, err := db.idx.AssetDynamics.Create(&state.AssetDynamicData{Symbol: op.Symbol}); err != nil {
		return err
	}
	if op.BitassetOpts != nil {
		if _, err := db.idx.AssetBitassets.Create(&state.AssetBitassetData{
			Symbol:  op.Symbol,
			Options: *op.BitassetOpts,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) applyAssetUpdate(op *protocol.AssetUpdateOperation) error {
	asset, err := db.asset(op.Symbol)
	if err != nil {
		return err
	}
	if asset.Issuer != op.Issuer {
		return types.Validationf("%s does not issue %s", op.Issuer, op.Symbol)
	}
	if !asset.MarketIssued {
		if err := op.NewOptions.Validate(protocol.UIAPermissionMask); err != nil {
			return err
		}
	}
	// Permissions only ever narrow.
	if op.NewOptions.IssuerPermissions&^asset.Options.IssuerPermissions != 0 {
		return types.Validationf("cannot regain revoked permissions on %s", op.Symbol)
	}
	dyn, ok := db.idx.AssetDynamic(op.Symbol)
	if !ok {
		return types.Consistencyf("asset %s has no supply record", op.Symbol)
	}
	if op.NewOptions.MaxSupply < dyn.CurrentSupply {
		return types.Validationf("max supply %d below current supply %d",
			op.NewOptions.MaxSupply, dyn.CurrentSupply)
	}
	cer := op.NewOptions.CoreExchangeRate
	if cer.Base.Symbol != op.Symbol || cer.Quote.Symbol != CoreSymbol {
		return types.Validationf("core exchange rate must price %s in %s", op.Symbol, CoreSymbol)
	}
	if op.NewIssuer != nil {
		if _, err := db.account(*op.NewIssuer); err != nil {
			return err
		}
	}
	return db.idx.Assets.Modify(asset, func(obj store.Object) {
		a := obj.(*state.AssetObject)
		a.Options = op.NewOptions
		if op.NewIssuer != nil {
			a.Issuer = *op.NewIssuer
		}
	})
}

func (db *Database) applyAssetIssue(op *protocol.AssetIssueOperation) error {
	asset, err := db.asset(op.AssetToIssue.Symbol)
	if err != nil {
		return err
	}
	if asset.Issuer != op.Issuer {
		return types.Validationf("%s does not issue %s", op.Issuer, asset.Symbol)
	}
	if asset.MarketIssued {
		return types.Validationf("market-issued asset %s cannot be issued directly", asset.Symbol)
	}
	if _, err := db.account(op.IssueTo); err != nil {
		return err
	}
	dyn, ok := db.idx.AssetDynamic(asset.Symbol)
	if !ok {
		return types.Consistencyf("asset %s has no supply record", asset.Symbol)
	}
	if dyn.CurrentSupply+op.AssetToIssue.Amount > asset.Options.MaxSupply {
		return types.Validationf("issuing %s exceeds max supply %d",
			op.AssetToIssue, asset.Options.MaxSupply)
	}
	if err := db.adjustSupply(op.AssetToIssue); err != nil {
		return err
	}
	return db.adjustBalance(op.IssueTo, op.AssetToIssue)
}

func (db *Database) applyAssetReserve(op *protocol.AssetReserveOperation) error {
	asset, err := db.asset(op.AmountToReserve.Symbol)
	if err != nil {
		return err
	}
	if asset.MarketIssued {
		return types.Validationf("market-issued asset %s cannot be reserved", asset.Symbol)
	}
	if err := db.adjustBalance(op.Payer, op.AmountToReserve.Neg()); err != nil {
		return err
	}
	return db.adjustSupply(op.AmountToReserve.Neg())
}

func (db *Database) applyAssetPublishFeed(op *protocol.AssetPublishFeedOperation) error {
	asset, err := db.asset(op.Symbol)
	if err != nil {
		return err
	}
	bit, err := db.bitasset(op.Symbol)
	if err != nil {
		return err
	}
	if err := op.Feed.Validate(op.Symbol, bit.Options.ShortBackingAsset); err != nil {
		return err
	}
	if asset.IsWitnessFed() {
		if _, err := db.witness(op.Publisher); err != nil {
			return err
		}
	} else if op.Publisher != asset.Issuer {
		return types.Validationf("only the issuer may feed %s", asset.Symbol)
	}

	now := db.idx.GlobalProps().Time
	if err := db.idx.AssetBitassets.Modify(bit, func(obj store.Object) {
		b := obj.(*state.AssetBitassetData)
		i := sort.Search(len(b.Feeds), func(i int) bool {
			return b.Feeds[i].Publisher >= op.Publisher
		})
		if i < len(b.Feeds) && b.Feeds[i].Publisher == op.Publisher {
			b.Feeds[i].PublishedAt = now
			b.Feeds[i].Feed = op.Feed
		} else {
			b.Feeds = append(b.Feeds, state.FeedEntry{})
			copy(b.Feeds[i+1:], b.Feeds[i:])
			b.Feeds[i] = state.FeedEntry{Publisher: op.Publisher, PublishedAt: now, Feed: op.Feed}
		}
		b.UpdateMedianFeeds(now)
	}); err != nil {
		return err
	}
	return db.checkCallOrders(op.Symbol)
}

func (db *Database) applyAssetGlobalSettle(op *protocol.AssetGlobalSettleOperation) error {
	asset, err := db.asset(op.AssetToSettle)
	if err != nil {
		return err
	}
	bit, err := db.bitasset(op.AssetToSettle)
	if err != nil {
		return err
	}
	if asset.Issuer != op.Issuer {
		return types.Validationf("%s does not issue %s", op.Issuer, asset.Symbol)
	}
	if !asset.CanGlobalSettle() {
		return types.Validationf("%s does not permit global settlement", asset.Symbol)
	}
	if bit.HasSettlement() {
		return types.Validationf("%s is already settled", asset.Symbol)
	}
	price := op.SettlePrice
	if price.Base.Symbol != asset.Symbol || price.Quote.Symbol != bit.Options.ShortBackingAsset {
		return types.Validationf("settle price pair does not match %s/%s",
			asset.Symbol, bit.Options.ShortBackingAsset)
	}
	return db.globallySettleAsset(asset, bit, price)
}

func (db *Database) applyAssetSettle(op *protocol.AssetSettleOperation) error {
	asset, err := db.asset(op.Amount.Symbol)
	if err != nil {
		return err
	}
	bit, err := db.bitasset(op.Amount.Symbol)
	if err != nil {
		return err
	}
	if op.Amount.Amount <= 0 {
		return types.Validationf("settle amount must be positive")
	}

	if bit.HasSettlement() {
		return db.settleFromFund(op.Account, bit, op.Amount)
	}

	if !asset.CanForceSettle() {
		return types.Validationf("%s does not permit force settlement", asset.Symbol)
	}
	if bit.CurrentFeed.IsNull() {
		return types.Validationf("%s has no price feed", asset.Symbol)
	}
	if err := db.adjustBalance(op.Account, op.Amount.Neg()); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	_, err = db.idx.ForceSettlements.Create(&state.ForceSettlement{
		Owner:          op.Account,
		Balance:        op.Amount,
		SettlementDate: now.Add(int64(bit.Options.ForceSettlementDelaySec)),
	})
	return err
}

func (db *Database) applyBidCollateral(op *protocol.BidCollateralOperation) error {
	asset, err := db.asset(op.DebtCovered.Symbol)
	if err != nil {
		return err
	}
	bit, err := db.bitasset(op.DebtCovered.Symbol)
	if err != nil {
		return err
	}
	if !bit.HasSettlement() {
		return types.Validationf("%s is not settled, no bids accepted", asset.Symbol)
	}
	if op.AdditionalCollateral.Symbol != bit.Options.ShortBackingAsset {
		return types.Validationf("collateral must be %s", bit.Options.ShortBackingAsset)
	}

	probe := &state.CollateralBid{
		Bidder:       op.Bidder,
		InvSwanPrice: types.Price{Quote: types.Asset{Symbol: op.DebtCovered.Symbol}},
	}
	existing, hasBid := db.idx.CollateralBids.Index(state.ByAccount).Find(probe)

	if op.DebtCovered.Amount == 0 {
		if !hasBid {
			return types.Validationf("%s has no bid on %s to cancel", op.Bidder, asset.Symbol)
		}
		return db.cancelBid(existing.(*state.CollateralBid))
	}

	if err := db.adjustBalance(op.Bidder, op.AdditionalCollateral.Neg()); err != nil {
		return err
	}
	price := types.NewPrice(op.AdditionalCollateral, op.DebtCovered)
	if hasBid {
		bid := existing.(*state.CollateralBid)
		if err := db.adjustBalance(op.Bidder, bid.InvSwanPrice.Base); err != nil {
			return err
		}
		return db.idx.CollateralBids.Modify(bid, func(obj store.Object) {
			obj.(*state.CollateralBid).InvSwanPrice = price
		})
	}
	_, err = db.idx.CollateralBids.Create(&state.CollateralBid{
		Bidder:       op.Bidder,
		InvSwanPrice: price,
	})
	return err
}
