package state

import (
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// LimitOrder is a resting order selling ForSale of the sell asset at
// SellPrice (sell/receive).
type LimitOrder struct {
	ID         types.ObjectID
	Created    types.TimeSec
	Expiration types.TimeSec
	Seller     types.AccountName
	OrderID    uint32
	ForSale    types.Share
	SellPrice  types.Price
}

func (o *LimitOrder) ObjectID() types.ObjectID      { return o.ID }
func (o *LimitOrder) SetObjectID(id types.ObjectID) { o.ID = id }
func (o *LimitOrder) CloneObject() store.Object {
	c := *o
	return &c
}

// AmountForSale is the remaining balance on offer.
func (o *LimitOrder) AmountForSale() types.Asset {
	return types.Asset{Amount: o.ForSale, Symbol: o.SellPrice.Base.Symbol}
}

// AmountToReceive is what the remaining balance buys at the limit
// price. When this truncates to zero the order is dust and gets
// cancelled rather than left unfillable.
func (o *LimitOrder) AmountToReceive() types.Asset {
	return o.AmountForSale().Mul(o.SellPrice)
}

// CallOrder is a margin position: collateral locked against debt of a
// market-issued asset. CallPrice is oriented collateral/debt and
// tracks the margin-call trigger.
type CallOrder struct {
	ID         types.ObjectID
	Borrower   types.AccountName
	Collateral types.Share
	Debt       types.Share
	CallPrice  types.Price
}

func (o *CallOrder) ObjectID() types.ObjectID      { return o.ID }
func (o *CallOrder) SetObjectID(id types.ObjectID) { o.ID = id }
func (o *CallOrder) CloneObject() store.Object {
	c := *o
	return &c
}

// DebtSymbol returns the borrowed asset.
func (o *CallOrder) DebtSymbol() types.AssetSymbol {
	return o.CallPrice.Quote.Symbol
}

// CollateralSymbol returns the backing asset.
func (o *CallOrder) CollateralSymbol() types.AssetSymbol {
	return o.CallPrice.Base.Symbol
}

// DebtAsset returns the debt as an asset value.
func (o *CallOrder) DebtAsset() types.Asset {
	return types.Asset{Amount: o.Debt, Symbol: o.DebtSymbol()}
}

// CollateralAsset returns the collateral as an asset value.
func (o *CallOrder) CollateralAsset() types.Asset {
	return types.Asset{Amount: o.Collateral, Symbol: o.CollateralSymbol()}
}

// CollateralizationLess orders positions from least to most
// collateralized within one debt asset, by the ratio
// collateral/debt cross-multiplied.
func (o *CallOrder) CollateralizationLess(other *CallOrder) bool {
	l := types.Mul64(uint64(o.Collateral), uint64(other.Debt))
	r := types.Mul64(uint64(other.Collateral), uint64(o.Debt))
	return l.Cmp(r) < 0
}

// ForceSettlement is a scheduled redemption of a bitasset against the
// least collateralized position, executed after the settlement delay.
type ForceSettlement struct {
	ID             types.ObjectID
	Owner          types.AccountName
	Balance        types.Asset
	SettlementDate types.TimeSec
}

func (s *ForceSettlement) ObjectID() types.ObjectID      { return s.ID }
func (s *ForceSettlement) SetObjectID(id types.ObjectID) { s.ID = id }
func (s *ForceSettlement) CloneObject() store.Object {
	c := *s
	return &c
}

// CollateralBid offers collateral to take over settled debt when a
// black-swanned asset revives. InvSwanPrice is collateral/debt: the
// bid's offered collateralization.
type CollateralBid struct {
	ID           types.ObjectID
	Bidder       types.AccountName
	InvSwanPrice types.Price
}

func (b *CollateralBid) ObjectID() types.ObjectID      { return b.ID }
func (b *CollateralBid) SetObjectID(id types.ObjectID) { b.ID = id }
func (b *CollateralBid) CloneObject() store.Object {
	c := *b
	return &c
}

// DebtSymbol returns the asset whose debt is being bid on.
func (b *CollateralBid) DebtSymbol() types.AssetSymbol {
	return b.InvSwanPrice.Quote.Symbol
}

// LiquidityRewardBalance accumulates an account's market-making volume
// in the core/stable market. Weight is min(core, stable) squared, so
// one-sided volume earns nothing.
type LiquidityRewardBalance struct {
	ID           types.ObjectID
	Owner        types.AccountName
	CoreVolume   types.Share
	StableVolume types.Share
	Weight       types.Uint128
	LastUpdate   types.TimeSec
}

func (l *LiquidityRewardBalance) ObjectID() types.ObjectID      { return l.ID }
func (l *LiquidityRewardBalance) SetObjectID(id types.ObjectID) { l.ID = id }
func (l *LiquidityRewardBalance) CloneObject() store.Object {
	c := *l
	return &c
}

// UpdateWeight recomputes Weight from the recorded volumes.
func (l *LiquidityRewardBalance) UpdateWeight() {
	side := l.CoreVolume
	if l.StableVolume < side {
		side = l.StableVolume
	}
	if side <= 0 {
		l.Weight = types.Uint128{}
		return
	}
	l.Weight = types.Mul64(uint64(side), uint64(side))
}
