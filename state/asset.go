package state

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// AssetObject is the immutable-ish description of an asset.
type AssetObject struct {
	ID           types.ObjectID
	Symbol       types.AssetSymbol
	Precision    uint8
	Issuer       types.AccountName
	Options      protocol.AssetOptions
	MarketIssued bool
}

func (a *AssetObject) ObjectID() types.ObjectID      { return a.ID }
func (a *AssetObject) SetObjectID(id types.ObjectID) { a.ID = id }
func (a *AssetObject) CloneObject() store.Object {
	c := *a
	return &c
}

// CanForceSettle reports whether holders may force-settle against
// collateral.
func (a *AssetObject) CanForceSettle() bool {
	return a.Options.Flags&protocol.AssetFlagDisableForceSettle == 0
}

// CanGlobalSettle reports whether the issuer kept the global-settle
// permission.
func (a *AssetObject) CanGlobalSettle() bool {
	return a.Options.IssuerPermissions&protocol.AssetFlagGlobalSettle != 0
}

// IsTransferRestricted reports whether transfers must involve the
// issuer.
func (a *AssetObject) IsTransferRestricted() bool {
	return a.Options.Flags&protocol.AssetFlagTransferRestricted != 0
}

// IsWitnessFed reports whether scheduled witnesses feed the asset.
func (a *AssetObject) IsWitnessFed() bool {
	return a.Options.Flags&protocol.AssetFlagWitnessFed != 0
}

// AssetDynamicData carries the fast-changing counters of an asset.
type AssetDynamicData struct {
	ID            types.ObjectID
	Symbol        types.AssetSymbol
	CurrentSupply types.Share
}

func (d *AssetDynamicData) ObjectID() types.ObjectID      { return d.ID }
func (d *AssetDynamicData) SetObjectID(id types.ObjectID) { d.ID = id }
func (d *AssetDynamicData) CloneObject() store.Object {
	c := *d
	return &c
}

// FeedEntry is one publisher's feed with its publication time.
type FeedEntry struct {
	Publisher   types.AccountName
	PublishedAt types.TimeSec
	Feed        protocol.PriceFeed
}

// AssetBitassetData carries the market-issued extension of an asset:
// options, published feeds, the derived median feed, and the
// settlement state.
type AssetBitassetData struct {
	ID      types.ObjectID
	Symbol  types.AssetSymbol
	Options protocol.BitassetOptions

	// Feeds is kept sorted by publisher for deterministic iteration.
	Feeds                      []FeedEntry
	CurrentFeed                protocol.PriceFeed
	CurrentFeedPublicationTime types.TimeSec

	ForceSettledVolume types.Share

	// Settlement state. A non-null SettlementPrice means the asset is
	// settled: holders redeem from SettlementFund at that price.
	SettlementPrice types.Price
	SettlementFund  types.Share
}

func (b *AssetBitassetData) ObjectID() types.ObjectID      { return b.ID }
func (b *AssetBitassetData) SetObjectID(id types.ObjectID) { b.ID = id }
func (b *AssetBitassetData) CloneObject() store.Object {
	c := *b
	c.Feeds = append([]FeedEntry(nil), b.Feeds...)
	return &c
}

// HasSettlement reports whether the asset is in the settled state.
func (b *AssetBitassetData) HasSettlement() bool {
	return !b.SettlementPrice.IsNull()
}

// MaxForceSettlementVolume returns how much supply may force-settle
// within the current maintenance window.
func (b *AssetBitassetData) MaxForceSettlementVolume(currentSupply types.Share) types.Share {
	if b.Options.MaximumForceSettlementVolume == 0 {
		return 0
	}
	if b.Options.MaximumForceSettlementVolume == types.Percent100 {
		return currentSupply + b.ForceSettledVolume
	}
	return types.MulDiv(currentSupply+b.ForceSettledVolume,
		types.Share(b.Options.MaximumForceSettlementVolume), types.Share(types.Percent100))
}

// UpdateMedianFeeds recomputes the median feed from entries still
// inside the feed lifetime. Fewer than MinimumFeeds valid entries
// leaves a null feed. The median is taken per field, matching the
// reference behavior.
func (b *AssetBitassetData) UpdateMedianFeeds(now types.TimeSec) {
	b.CurrentFeedPublicationTime = now
	current := make([]protocol.PriceFeed, 0, len(b.Feeds))
	for _, e := range b.Feeds {
		if e.PublishedAt.IsZero() {
			continue
		}
		if now.Sub(e.PublishedAt) < int64(b.Options.FeedLifetimeSec) {
			current = append(current, e.Feed)
			if e.PublishedAt.Before(b.CurrentFeedPublicationTime) {
				b.CurrentFeedPublicationTime = e.PublishedAt
			}
		}
	}

	if len(current) < int(b.Options.MinimumFeeds) {
		b.CurrentFeedPublicationTime = now
		b.CurrentFeed = protocol.PriceFeed{}
		return
	}
	if len(current) == 1 {
		b.CurrentFeed = current[0]
		return
	}

	mid := len(current) / 2
	b.CurrentFeed.SettlementPrice = medianBy(current, mid, func(a, b protocol.PriceFeed) bool {
		return a.SettlementPrice.Less(b.SettlementPrice)
	}).SettlementPrice
	b.CurrentFeed.MaintenanceCollateralRatio = medianBy(current, mid, func(a, b protocol.PriceFeed) bool {
		return a.MaintenanceCollateralRatio < b.MaintenanceCollateralRatio
	}).MaintenanceCollateralRatio
	b.CurrentFeed.MaximumShortSqueezeRatio = medianBy(current, mid, func(a, b protocol.PriceFeed) bool {
		return a.MaximumShortSqueezeRatio < b.MaximumShortSqueezeRatio
	}).MaximumShortSqueezeRatio
	b.CurrentFeed.CoreExchangeRate = medianBy(current, mid, func(a, b protocol.PriceFeed) bool {
		return a.CoreExchangeRate.Less(b.CoreExchangeRate)
	}).CoreExchangeRate
}

// medianBy returns the element that would sit at position mid if the
// slice were sorted by less. The slice is reordered in place.
func medianBy(feeds []protocol.PriceFeed, mid int, less func(a, b protocol.PriceFeed) bool) protocol.PriceFeed {
	// Selection by partial sort; feed counts are tiny.
	for i := 0; i <= mid; i++ {
		min := i
		for j := i + 1; j < len(feeds); j++ {
			if less(feeds[j], feeds[min]) {
				min = j
			}
		}
		feeds[i], feeds[min] = feeds[min], feeds[i]
	}
	return feeds[mid]
}

// FeedHistory is the singleton median history of witness-published
// core/stable exchange rates driving conversions.
type FeedHistory struct {
	ID                   types.ObjectID
	CurrentMedianHistory types.Price
	PriceHistory         []types.Price
}

func (f *FeedHistory) ObjectID() types.ObjectID      { return f.ID }
func (f *FeedHistory) SetObjectID(id types.ObjectID) { f.ID = id }
func (f *FeedHistory) CloneObject() store.Object {
	c := *f
	c.PriceHistory = append([]types.Price(nil), f.PriceHistory...)
	return &c
}

// ConvertRequest is a pending stable-to-core conversion.
type ConvertRequest struct {
	ID             types.ObjectID
	Owner          types.AccountName
	RequestID      uint32
	Amount         types.Asset
	ConversionDate types.TimeSec
}

func (r *ConvertRequest) ObjectID() types.ObjectID      { return r.ID }
func (r *ConvertRequest) SetObjectID(id types.ObjectID) { r.ID = id }
func (r *ConvertRequest) CloneObject() store.Object {
	c := *r
	return &c
}
