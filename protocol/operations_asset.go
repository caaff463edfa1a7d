package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// Asset permission/flag bits. Permissions record what the issuer may
// ever enable; flags record what is currently in force. GlobalSettle
// is a permission only and never appears in flags.
const (
	AssetFlagTransferRestricted uint16 = 1 << 0
	AssetFlagDisableForceSettle uint16 = 1 << 1
	AssetFlagGlobalSettle       uint16 = 1 << 2
	AssetFlagWitnessFed         uint16 = 1 << 3
)

// UIAPermissionMask holds the bits a user-issued asset may carry.
const UIAPermissionMask = AssetFlagTransferRestricted

// BitassetPermissionMask holds the bits a market-issued asset may carry.
const BitassetPermissionMask = AssetFlagTransferRestricted |
	AssetFlagDisableForceSettle | AssetFlagGlobalSettle | AssetFlagWitnessFed

// AssetOptions are the issuer-controlled parameters common to every
// asset.
type AssetOptions struct {
	MaxSupply         types.Share `json:"max_supply"`
	IssuerPermissions uint16      `json:"issuer_permissions"`
	Flags             uint16      `json:"flags"`
	CoreExchangeRate  types.Price `json:"core_exchange_rate"`
	Description       string      `json:"description"`
}

// Validate checks option sanity against the given permission mask.
func (o AssetOptions) Validate(mask uint16) error {
	if o.MaxSupply <= 0 || o.MaxSupply > types.MaxShareSupply {
		return types.Validationf("max supply %d out of range", o.MaxSupply)
	}
	if o.IssuerPermissions&^mask != 0 {
		return types.Validationf("issuer permissions %#x outside mask %#x", o.IssuerPermissions, mask)
	}
	if o.Flags&^o.IssuerPermissions != 0 {
		return types.Validationf("flags %#x not covered by permissions %#x", o.Flags, o.IssuerPermissions)
	}
	if o.Flags&AssetFlagGlobalSettle != 0 {
		return types.Validationf("global settle is a permission, not a flag")
	}
	if len(o.Description) > 4096 {
		return types.Validationf("description too long")
	}
	return nil
}

// BitassetOptions are the extra parameters of a market-issued asset.
type BitassetOptions struct {
	FeedLifetimeSec              uint32            `json:"feed_lifetime_sec"`
	MinimumFeeds                 uint8             `json:"minimum_feeds"`
	ForceSettlementDelaySec      uint32            `json:"force_settlement_delay_sec"`
	ForceSettlementOffsetPercent types.Percent     `json:"force_settlement_offset_percent"`
	MaximumForceSettlementVolume types.Percent     `json:"maximum_force_settlement_volume"`
	ShortBackingAsset            types.AssetSymbol `json:"short_backing_asset"`
}

// Validate checks the bitasset parameters.
func (o BitassetOptions) Validate() error {
	if o.FeedLifetimeSec == 0 {
		return types.Validationf("feed lifetime must be positive")
	}
	if o.MinimumFeeds == 0 {
		return types.Validationf("minimum feeds must be positive")
	}
	if o.ForceSettlementOffsetPercent > types.Percent100 {
		return types.Validationf("settlement offset exceeds 100%%")
	}
	if o.MaximumForceSettlementVolume > types.Percent100 {
		return types.Validationf("settlement volume exceeds 100%%")
	}
	if !o.ShortBackingAsset.IsValid() {
		return types.Validationf("invalid backing asset %q", o.ShortBackingAsset)
	}
	return nil
}

// PriceFeed is one publisher's view of a bitasset market. The
// settlement price is oriented debt/collateral.
type PriceFeed struct {
	SettlementPrice            types.Price   `json:"settlement_price"`
	MaintenanceCollateralRatio types.Percent `json:"maintenance_collateral_ratio"`
	MaximumShortSqueezeRatio   types.Percent `json:"maximum_short_squeeze_ratio"`
	CoreExchangeRate           types.Price   `json:"core_exchange_rate"`
}

// IsNull reports whether the feed carries no settlement price.
func (f PriceFeed) IsNull() bool {
	return f.SettlementPrice.IsNull()
}

// Validate checks the feed's internal consistency for the given
// asset/backing pair.
func (f PriceFeed) Validate(symbol, backing types.AssetSymbol) error {
	if f.IsNull() {
		return nil
	}
	if f.SettlementPrice.Base.Symbol != symbol || f.SettlementPrice.Quote.Symbol != backing {
		return types.Validationf("settlement price pair %s/%s does not match %s/%s",
			f.SettlementPrice.Base.Symbol, f.SettlementPrice.Quote.Symbol, symbol, backing)
	}
	if f.MaintenanceCollateralRatio < types.Percent100 {
		return types.Validationf("maintenance collateral ratio below 100%%")
	}
	if f.MaximumShortSqueezeRatio < types.Percent100 {
		return types.Validationf("short squeeze ratio below 100%%")
	}
	return nil
}

// AssetCreateOperation registers a new asset. Creating "A.B" requires
// the issuer to own "A". A non-nil BitassetOpts makes the asset
// market-issued.
type AssetCreateOperation struct {
	Issuer       types.AccountName `json:"issuer"`
	Symbol       types.AssetSymbol `json:"symbol"`
	Precision    uint8             `json:"precision"`
	Options      AssetOptions      `json:"options"`
	BitassetOpts *BitassetOptions  `json:"bitasset_opts,omitempty"`
}

func (op *AssetCreateOperation) Type() OpType { return OpAssetCreate }

func (op *AssetCreateOperation) Validate() error {
	if !op.Issuer.IsValid() {
		return types.Validationf("invalid issuer %q", op.Issuer)
	}
	if !op.Symbol.IsValid() {
		return types.Validationf("invalid symbol %q", op.Symbol)
	}
	if op.Precision > 12 {
		return types.Validationf("precision %d too large", op.Precision)
	}
	mask := UIAPermissionMask
	if op.BitassetOpts != nil {
		mask = BitassetPermissionMask
		if err := op.BitassetOpts.Validate(); err != nil {
			return err
		}
		if op.BitassetOpts.ShortBackingAsset == op.Symbol {
			return types.Validationf("asset cannot back itself")
		}
	}
	return op.Options.Validate(mask)
}

func (op *AssetCreateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Issuer)
}

// AssetUpdateOperation changes asset options or hands the asset to a
// new issuer. Permissions can only ever be narrowed.
type AssetUpdateOperation struct {
	Issuer     types.AccountName  `json:"issuer"`
	Symbol     types.AssetSymbol  `json:"symbol"`
	NewIssuer  *types.AccountName `json:"new_issuer,omitempty"`
	NewOptions AssetOptions       `json:"new_options"`
}

func (op *AssetUpdateOperation) Type() OpType { return OpAssetUpdate }

func (op *AssetUpdateOperation) Validate() error {
	if !op.Issuer.IsValid() {
		return types.Validationf("invalid issuer %q", op.Issuer)
	}
	if !op.Symbol.IsValid() {
		return types.Validationf("invalid symbol %q", op.Symbol)
	}
	if op.NewIssuer != nil && !op.NewIssuer.IsValid() {
		return types.Validationf("invalid new issuer %q", *op.NewIssuer)
	}
	return op.NewOptions.Validate(BitassetPermissionMask)
}

func (op *AssetUpdateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Issuer)
}

// AssetIssueOperation mints new supply of a user-issued asset to an
// account.
type AssetIssueOperation struct {
	Issuer       types.AccountName `json:"issuer"`
	AssetToIssue types.Asset       `json:"asset_to_issue"`
	IssueTo      types.AccountName `json:"issue_to"`
	Memo         string            `json:"memo"`
}

func (op *AssetIssueOperation) Type() OpType { return OpAssetIssue }

func (op *AssetIssueOperation) Validate() error {
	if !op.Issuer.IsValid() {
		return types.Validationf("invalid issuer %q", op.Issuer)
	}
	if !op.IssueTo.IsValid() {
		return types.Validationf("invalid recipient %q", op.IssueTo)
	}
	return validatePositiveAmount(op.AssetToIssue)
}

func (op *AssetIssueOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Issuer)
}

// AssetReserveOperation burns held supply of a user-issued asset.
type AssetReserveOperation struct {
	Payer           types.AccountName `json:"payer"`
	AmountToReserve types.Asset       `json:"amount_to_reserve"`
}

func (op *AssetReserveOperation) Type() OpType { return OpAssetReserve }

func (op *AssetReserveOperation) Validate() error {
	if !op.Payer.IsValid() {
		return types.Validationf("invalid payer %q", op.Payer)
	}
	return validatePositiveAmount(op.AmountToReserve)
}

func (op *AssetReserveOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Payer)
}

// AssetPublishFeedOperation records a price feed for a bitasset from
// an authorized publisher.
type AssetPublishFeedOperation struct {
	Publisher types.AccountName `json:"publisher"`
	Symbol    types.AssetSymbol `json:"symbol"`
	Feed      PriceFeed         `json:"feed"`
}

func (op *AssetPublishFeedOperation) Type() OpType { return OpAssetPublishFeed }

func (op *AssetPublishFeedOperation) Validate() error {
	if !op.Publisher.IsValid() {
		return types.Validationf("invalid publisher %q", op.Publisher)
	}
	if !op.Symbol.IsValid() {
		return types.Validationf("invalid symbol %q", op.Symbol)
	}
	if !op.Feed.IsNull() {
		if op.Feed.SettlementPrice.Base.Symbol != op.Symbol {
			return types.Validationf("feed is not for %s", op.Symbol)
		}
	}
	return nil
}

func (op *AssetPublishFeedOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Publisher)
}

// AssetGlobalSettleOperation settles every margin position of a
// bitasset at the given price. Requires the GlobalSettle permission.
type AssetGlobalSettleOperation struct {
	Issuer        types.AccountName `json:"issuer"`
	AssetToSettle types.AssetSymbol `json:"asset_to_settle"`
	SettlePrice   types.Price       `json:"settle_price"`
}

func (op *AssetGlobalSettleOperation) Type() OpType { return OpAssetGlobalSettle }

func (op *AssetGlobalSettleOperation) Validate() error {
	if !op.Issuer.IsValid() {
		return types.Validationf("invalid issuer %q", op.Issuer)
	}
	if !op.AssetToSettle.IsValid() {
		return types.Validationf("invalid symbol %q", op.AssetToSettle)
	}
	if op.SettlePrice.IsNull() {
		return types.Validationf("null settle price")
	}
	if op.SettlePrice.Base.Symbol != op.AssetToSettle {
		return types.Validationf("settle price is not for %s", op.AssetToSettle)
	}
	return nil
}

func (op *AssetGlobalSettleOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Issuer)
}

// AssetSettleOperation redeems bitasset against its collateral pool:
// instantly when globally settled, otherwise as a scheduled force
// settlement.
type AssetSettleOperation struct {
	Account types.AccountName `json:"account"`
	Amount  types.Asset       `json:"amount"`
}

func (op *AssetSettleOperation) Type() OpType { return OpAssetSettle }

func (op *AssetSettleOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	if op.Amount.Amount < 0 {
		return types.Validationf("negative settle amount")
	}
	if !op.Amount.Symbol.IsValid() {
		return types.Validationf("invalid symbol %q", op.Amount.Symbol)
	}
	return nil
}

func (op *AssetSettleOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Account)
}

// BidCollateralOperation bids additional collateral to take over part
// of a settled bitasset's debt when it revives.
type BidCollateralOperation struct {
	Bidder               types.AccountName `json:"bidder"`
	AdditionalCollateral types.Asset       `json:"additional_collateral"`
	DebtCovered          types.Asset       `json:"debt_covered"`
}

func (op *BidCollateralOperation) Type() OpType { return OpBidCollateral }

func (op *BidCollateralOperation) Validate() error {
	if !op.Bidder.IsValid() {
		return types.Validationf("invalid bidder %q", op.Bidder)
	}
	if op.AdditionalCollateral.Amount < 0 {
		return types.Validationf("negative additional collateral")
	}
	if op.DebtCovered.Amount < 0 {
		return types.Validationf("negative debt covered")
	}
	if op.DebtCovered.Amount == 0 && op.AdditionalCollateral.Amount != 0 {
		return types.Validationf("zero debt requires zero collateral")
	}
	return nil
}

func (op *BidCollateralOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Bidder)
}
